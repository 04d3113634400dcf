package escalation

import (
	"fmt"
	"strings"

	"crisis-chat/backend/internal/models"
)

// StatusPolicy decides which escalations move a session into emergency status.
// Every escalation produces a record whatever the policy says.
type StatusPolicy string

const (
	// CriticalOnly moves the session to emergency for critical messages only;
	// high messages raise priority and notify but leave the status alone
	CriticalOnly StatusPolicy = "critical-only"
	// HighAndCritical treats high like critical
	HighAndCritical StatusPolicy = "high-and-critical"
)

// DefaultStatusPolicy is used when nothing is configured
const DefaultStatusPolicy = CriticalOnly

// Threshold is the lowest message level that escalates
const Threshold = models.CrisisHigh

// ParseStatusPolicy accepts the policy names used in configuration
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch StatusPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CriticalOnly:
		return CriticalOnly, nil
	case HighAndCritical:
		return HighAndCritical, nil
	}
	return "", fmt.Errorf("unknown escalation status policy %q", s)
}

// PolicyFromFlag maps the boolean environment switch onto a policy
func PolicyFromFlag(highForcesEmergency bool) StatusPolicy {
	if highForcesEmergency {
		return HighAndCritical
	}
	return CriticalOnly
}

// ForcesEmergency reports whether a message at level puts its session into emergency
func (p StatusPolicy) ForcesEmergency(level models.CrisisLevel) bool {
	switch level {
	case models.CrisisCritical:
		return true
	case models.CrisisHigh:
		return p == HighAndCritical
	}
	return false
}

// Escalates reports whether a message at level produces an escalation record
func Escalates(level models.CrisisLevel) bool {
	return level.AtLeast(Threshold)
}

// ChannelsFor selects the outside services to contact for a level
func ChannelsFor(level models.CrisisLevel) models.EmergencyChannels {
	switch level {
	case models.CrisisCritical:
		return models.EmergencyChannels{Police: true, Ambulance: true, CrisisTeam: true}
	case models.CrisisHigh:
		return models.EmergencyChannels{CrisisTeam: true}
	}
	return models.EmergencyChannels{}
}
