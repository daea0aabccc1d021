// Package activity defines the audit trail written by domain services.
package activity

import (
	"context"
	"time"
)

// Entry is one audited action.
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]string
	CreatedAt  time.Time
}

// Logger records audit entries. Implementations must not block the caller
// on failure; errors are returned for the caller to log.
type Logger interface {
	Log(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

// Log implements Logger.
func (Nop) Log(context.Context, Entry) error { return nil }
