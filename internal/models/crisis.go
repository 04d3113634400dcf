package models

import "fmt"

// CrisisLevel grades how urgent a message or session is
type CrisisLevel string

const (
	CrisisLow      CrisisLevel = "low"
	CrisisMedium   CrisisLevel = "medium"
	CrisisHigh     CrisisLevel = "high"
	CrisisCritical CrisisLevel = "critical"
)

var crisisRank = map[CrisisLevel]int{
	CrisisLow:      0,
	CrisisMedium:   1,
	CrisisHigh:     2,
	CrisisCritical: 3,
}

var crisisPriority = map[CrisisLevel]int{
	CrisisLow:      1,
	CrisisMedium:   4,
	CrisisHigh:     7,
	CrisisCritical: 10,
}

// Rank orders levels from low (0) to critical (3). Unknown levels rank as low.
func (l CrisisLevel) Rank() int {
	return crisisRank[l]
}

// Priority maps a crisis level to the triage priority of its session
func (l CrisisLevel) Priority() int {
	if p, ok := crisisPriority[l]; ok {
		return p
	}
	return crisisPriority[CrisisLow]
}

// AtLeast reports whether l is as severe as other or more
func (l CrisisLevel) AtLeast(other CrisisLevel) bool {
	return l.Rank() >= other.Rank()
}

// Valid reports whether l is one of the known levels
func (l CrisisLevel) Valid() bool {
	_, ok := crisisRank[l]
	return ok
}

// MaxCrisisLevel returns the more severe of two levels
func MaxCrisisLevel(a, b CrisisLevel) CrisisLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	if !a.Valid() {
		return CrisisLow
	}
	return a
}

// ParseCrisisLevel converts a string into a CrisisLevel
func ParseCrisisLevel(s string) (CrisisLevel, error) {
	l := CrisisLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown crisis level %q", s)
	}
	return l, nil
}
