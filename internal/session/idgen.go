package session

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out identifiers for sessions and messages
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues time-ordered UUIDv7 identifiers
type UUIDGenerator struct{}

// NewID returns a fresh UUIDv7, falling back to a random v4 if the clock source fails
func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SequenceGenerator issues prefix-1, prefix-2, ... and is handy in tests and tools
type SequenceGenerator struct {
	Prefix string
	next   atomic.Uint64
}

// NewID returns the next identifier in the sequence
func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s-%d", g.Prefix, g.next.Add(1))
}

// IDFunc adapts a plain function to IDGenerator
type IDFunc func() string

// NewID calls f
func (f IDFunc) NewID() string { return f() }
