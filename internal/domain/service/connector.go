// Package service defines the domain service contracts implemented by the
// infrastructure layer.
package service

import (
	"context"

	"walletd/internal/domain/entity"
)

// ChangeEvent is a discrete account/chain report from a provider.
type ChangeEvent struct {
	Account string
	ChainID int64
}

// Unsubscribe detaches a change callback registered with OnChange.
type Unsubscribe func()

// Connector is the uniform capability surface over one wallet integration.
// Handles are owned by the registry and must be re-resolved by wallet type
// rather than held across async boundaries, so every call site observes the
// same underlying provider state.
type Connector interface {
	// Type returns the wallet type this connector is bound to.
	Type() entity.WalletType

	// Connect asks the provider for an active account, prompting the user
	// if necessary. Returns the lowercase account address.
	Connect(ctx context.Context) (string, error)

	// Disconnect tears down the provider link. Idempotent.
	Disconnect()

	// CurrentAccount returns the live account without prompting, or ""
	// when the provider has no unlocked account.
	CurrentAccount(ctx context.Context) (string, error)

	// CurrentChainID returns the chain the provider is on, or 0 when unknown.
	CurrentChainID(ctx context.Context) (int64, error)

	// SwitchChain asks the provider to move to the given chain. A refusal
	// is returned as an error; the caller decides what refusal means.
	SwitchChain(ctx context.Context, chainID int64) error

	// OnChange registers a callback invoked on provider-side account or
	// chain changes. Changes surface one observed field at a time: when
	// account and chain move together, subscribers see an intermediate
	// event carrying the new account with the previous chain before the
	// corrected pair. Consumers must treat every event as a report to
	// reconcile against, not as an atomic transition. The returned function
	// unsubscribes the callback.
	OnChange(cb func(ChangeEvent)) Unsubscribe
}

// ConnectorRegistry maps a wallet type to its connector. Pure lookup with no
// side effects; repeated resolves for the same type observe the same provider.
type ConnectorRegistry interface {
	Resolve(walletType entity.WalletType) (Connector, error)
}
