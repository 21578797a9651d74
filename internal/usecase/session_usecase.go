// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"walletd/internal/domain/entity"
)

// SessionUsecase is the published transition API of the wallet session state
// machine. All session state lives behind it; nothing else in the process
// reads or writes the session store or the snapshot directly.
type SessionUsecase interface {
	// Run processes the controller inbox until the context is cancelled.
	// Commands and drift events are applied in arrival order on a single
	// goroutine; Run must be running for the other methods to make progress.
	Run(ctx context.Context) error

	// Restore attempts a silent reconnect from the persisted snapshot.
	// Called once at startup; a store without a snapshot is a no-op.
	Restore(ctx context.Context) error

	// Connect starts an authentication attempt for the given wallet type.
	// It returns once the attempt is accepted; progress is observable via
	// Current and the session event bus.
	Connect(ctx context.Context, walletType entity.WalletType) error

	// Logout disconnects the connector, clears the store and drops the
	// in-memory session. Idempotent; wins races against queued drift events.
	Logout(ctx context.Context) error

	// NotifyDrift reports a live (account, chain) observation that differs
	// from what the watcher last saw. Never blocks the caller for long.
	NotifyDrift(ctx context.Context, account string, chainID int64)

	// Current returns a copy of the session snapshot (nil when logged out)
	// and the current state.
	Current() (*entity.SessionSnapshot, entity.SessionState)

	// Profile returns the cached user profile, nil until fetched.
	Profile() *entity.UserProfile

	// LastErrorCode returns the business code of the last failure, for
	// banner display. Empty when the last transition succeeded.
	LastErrorCode() string
}

// DriftWatcher polls the active session's connector for account or chain
// drift and feeds discrete, de-duplicated reports into the controller.
type DriftWatcher interface {
	// Watch polls until the context is cancelled.
	Watch(ctx context.Context) error
}
