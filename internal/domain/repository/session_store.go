// Package repository defines the persistence contracts consumed by the use cases.
package repository

import (
	"context"

	"walletd/internal/domain/entity"
)

// SessionStore durably persists the session snapshot across process restarts.
// It is the only component with durable I/O in the session core and must be
// safe to call from multiple goroutines; implementations serialize all calls
// through a single critical section.
//
// The auth session controller is the sole writer. Everything else reads.
type SessionStore interface {
	// Load reads the persisted snapshot at process start. It fails soft:
	// a missing or unparsable snapshot yields (nil, nil), never an error
	// the caller has to branch on to survive startup.
	Load(ctx context.Context) (*entity.SessionSnapshot, error)

	// Save atomically overwrites the persisted snapshot. A reader observes
	// either the full old snapshot or the full new one, never a partial write.
	Save(ctx context.Context, snapshot *entity.SessionSnapshot) error

	// Clear removes the persisted snapshot. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
