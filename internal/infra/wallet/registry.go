package wallet

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"walletd/config"
	"walletd/internal/domain/entity"
	domainerrors "walletd/internal/domain/errors"
	"walletd/internal/domain/service"

	"go.uber.org/fx"
)

// registry maps each wallet type to the single connector handle wrapping its
// provider. Resolution is a pure lookup: repeated resolves for the same type
// return the same handle, so polling from two call sites never disagrees.
type registry struct {
	connectors map[entity.WalletType]*connectorHandle
}

// Params defines the required parameters
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewRegistry builds the connector for every wallet type the config enables.
func NewRegistry(params Params) (service.ConnectorRegistry, error) {
	cfg := params.Config.Wallet
	connectors := make(map[entity.WalletType]*connectorHandle)

	if cfg.Injected != nil {
		provider := NewRPCProvider(cfg.Injected.Endpoint, cfg.ConnectTimeout, params.Logger)
		connectors[entity.WalletTypeInjected] = newConnectorHandle(entity.WalletTypeInjected, provider)
	}
	if cfg.WalletConnect != nil {
		provider := NewPairingProvider(cfg.WalletConnect.BridgeURL, cfg.WalletConnect.PairingQRPath, cfg.ConnectTimeout, params.Logger)
		connectors[entity.WalletTypeWalletConnect] = newConnectorHandle(entity.WalletTypeWalletConnect, provider)
	}
	if cfg.Coinbase != nil {
		provider := NewRPCProvider(cfg.Coinbase.Endpoint, cfg.ConnectTimeout, params.Logger)
		connectors[entity.WalletTypeCoinbase] = newConnectorHandle(entity.WalletTypeCoinbase, provider)
	}

	return &registry{connectors: connectors}, nil
}

// NewRegistryFromProviders builds a registry over pre-built providers, used by
// tests and embedders that bring their own provider implementations.
func NewRegistryFromProviders(providers map[entity.WalletType]Provider) service.ConnectorRegistry {
	connectors := make(map[entity.WalletType]*connectorHandle, len(providers))
	for walletType, provider := range providers {
		connectors[walletType] = newConnectorHandle(walletType, provider)
	}

	return &registry{connectors: connectors}
}

func (r *registry) Resolve(walletType entity.WalletType) (service.Connector, error) {
	handle, ok := r.connectors[walletType]
	if !ok {
		return nil, domainerrors.ErrUnknownWalletType.WrapMessage(walletType.String())
	}

	return handle, nil
}

// connectorHandle adapts a Provider to the Connector capability surface and
// owns change fan-out: every successful state query refreshes the last known
// (account, chain) pair and notifies subscribers only on an actual change.
type connectorHandle struct {
	walletType entity.WalletType
	provider   Provider

	mu        sync.Mutex
	lastKnown service.ChangeEvent
	observed  bool
	nextSubID int
	subs      map[int]func(service.ChangeEvent)
}

func newConnectorHandle(walletType entity.WalletType, provider Provider) *connectorHandle {
	return &connectorHandle{
		walletType: walletType,
		provider:   provider,
		subs:       make(map[int]func(service.ChangeEvent)),
	}
}

func (h *connectorHandle) Type() entity.WalletType {
	return h.walletType
}

func (h *connectorHandle) Connect(ctx context.Context) (string, error) {
	accounts, err := h.provider.RequestAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", domainerrors.ErrProviderUnavailable.WrapMessage("provider reported no accounts")
	}

	account := strings.ToLower(accounts[0])
	h.observe(func(ev *service.ChangeEvent) { ev.Account = account })

	return account, nil
}

func (h *connectorHandle) Disconnect() {
	h.provider.Disconnect()

	h.mu.Lock()
	h.observed = false
	h.lastKnown = service.ChangeEvent{}
	h.mu.Unlock()
}

func (h *connectorHandle) CurrentAccount(ctx context.Context) (string, error) {
	accounts, err := h.provider.Accounts(ctx)
	if err != nil {
		return "", err
	}

	var account string
	if len(accounts) > 0 {
		account = strings.ToLower(accounts[0])
	}
	h.observe(func(ev *service.ChangeEvent) { ev.Account = account })

	return account, nil
}

func (h *connectorHandle) CurrentChainID(ctx context.Context) (int64, error) {
	chainID, err := h.provider.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	h.observe(func(ev *service.ChangeEvent) { ev.ChainID = chainID })

	return chainID, nil
}

func (h *connectorHandle) SwitchChain(ctx context.Context, chainID int64) error {
	return h.provider.SwitchChain(ctx, chainID)
}

func (h *connectorHandle) OnChange(cb func(service.ChangeEvent)) service.Unsubscribe {
	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	h.subs[id] = cb
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// observe folds a fresh observation into lastKnown and fans it out when the
// pair actually changed. The first observation seeds the baseline silently.
// Each provider query refreshes one field, so a simultaneous account and
// chain move fans out as two events: (new account, old chain) after the
// account query, then the corrected pair after the chain query. Subscribers
// handle each event as a reconciliation report.
func (h *connectorHandle) observe(apply func(*service.ChangeEvent)) {
	h.mu.Lock()

	updated := h.lastKnown
	apply(&updated)

	first := !h.observed
	changed := updated != h.lastKnown
	h.lastKnown = updated
	h.observed = true

	var cbs []func(service.ChangeEvent)
	if changed && !first {
		cbs = make([]func(service.ChangeEvent), 0, len(h.subs))
		for _, cb := range h.subs {
			cbs = append(cbs, cb)
		}
	}
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(updated)
	}
}
