package service

import (
	"context"
	"time"

	"walletd/internal/domain/entity"
)

// SessionEvent describes one session replacement. Snapshot is nil after a
// logout or hard failure. The access token never appears in the event; the
// snapshot's JSON encoding excludes it.
type SessionEvent struct {
	State     entity.SessionState     `json:"state"`
	Snapshot  *entity.SessionSnapshot `json:"snapshot,omitempty"`
	ErrorCode string                  `json:"errorCode,omitempty"` // last-error tag for banner display
	At        time.Time               `json:"at"`
}

// SessionEventPublisher fans session changes out to the rest of the
// application. This is the only interface page-level "am I logged in"
// consumers need; they never touch the registry or the store directly.
type SessionEventPublisher interface {
	// PublishSessionChanged announces a session replacement.
	PublishSessionChanged(ctx context.Context, event *SessionEvent) error

	// Close releases any resources held by the publisher.
	Close() error
}
