package scheduler

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Token is an explicit cancellation handle for a per-resource polling
// loop. The owner of the watched resource cancels the token when the
// resource goes away; the loop observes it at each tick and self-cancels.
type Token struct {
	id        string
	cancelled atomic.Bool
}

// NewToken creates a live token with a unique identity.
func NewToken() *Token {
	return &Token{id: uuid.NewString()}
}

// ID returns the token's unique identity.
func (t *Token) ID() string { return t.id }

// Cancel marks the token cancelled. Safe to call more than once.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }
