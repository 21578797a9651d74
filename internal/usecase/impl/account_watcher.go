package impl

import (
	"context"
	"log/slog"
	"time"

	"walletd/config"
	"walletd/internal/domain/entity"
	"walletd/internal/domain/service"
	"walletd/internal/usecase"
)

// accountWatcher observes the active connector for account or chain changes
// behind the controller's back, via a change subscription plus a periodic
// poll driving fresh provider observations. It only notifies; all session
// mutation happens inside the controller, and the controller ignores
// notifications that match the current snapshot, so duplicate reports from
// the two paths are harmless.
type accountWatcher struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry service.ConnectorRegistry
	session  usecase.SessionUsecase

	subscribedType entity.WalletType
	unsubscribe    service.Unsubscribe

	// lastReported suppresses re-reporting the same divergence every tick
	// while the controller is still reacting to it.
	lastReported *service.ChangeEvent
}

// NewAccountWatcher is the constructor for accountWatcher.
func NewAccountWatcher(
	cfg *config.Config,
	logger *slog.Logger,
	registry service.ConnectorRegistry,
	session usecase.SessionUsecase,
) usecase.DriftWatcher {
	return &accountWatcher{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		session:  session,
	}
}

// Watch polls until the context is cancelled.
func (w *accountWatcher) Watch(ctx context.Context) error {
	interval := w.cfg.Watcher.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.dropSubscription()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *accountWatcher) poll(ctx context.Context) {
	snapshot, state := w.session.Current()
	if snapshot == nil || state != entity.StateAuthenticated {
		w.dropSubscription()
		w.lastReported = nil

		return
	}

	connector, err := w.registry.Resolve(snapshot.WalletType)
	if err != nil {
		return
	}
	w.ensureSubscription(ctx, snapshot.WalletType, connector)

	// Fresh observations also feed the connector's own change fan-out.
	account, err := connector.CurrentAccount(ctx)
	if err != nil {
		// A transient provider error is not a drift; the next tick retries.
		w.logger.Debug("Watcher account poll failed", "error", err)

		return
	}

	chainID, err := connector.CurrentChainID(ctx)
	if err != nil {
		w.logger.Debug("Watcher chain poll failed", "error", err)

		return
	}

	if account == snapshot.Account && chainID == snapshot.ChainID {
		w.lastReported = nil

		return
	}

	observed := &service.ChangeEvent{Account: account, ChainID: chainID}
	if w.lastReported != nil && *w.lastReported == *observed {
		return
	}
	w.lastReported = observed

	w.logger.Info("Provider state diverged from session",
		slog.String("stored_account", snapshot.Account),
		slog.String("live_account", account),
		slog.Int64("stored_chain_id", snapshot.ChainID),
		slog.Int64("live_chain_id", chainID),
	)

	w.session.NotifyDrift(ctx, account, chainID)
}

// ensureSubscription keeps exactly one change subscription, on the connector
// of the authenticated wallet type. The callback relays provider-observed
// changes the moment any caller's query surfaces them, without waiting for
// the next tick.
func (w *accountWatcher) ensureSubscription(ctx context.Context, walletType entity.WalletType, connector service.Connector) {
	if w.unsubscribe != nil && w.subscribedType == walletType {
		return
	}
	w.dropSubscription()

	w.subscribedType = walletType
	w.unsubscribe = connector.OnChange(func(ev service.ChangeEvent) {
		w.session.NotifyDrift(ctx, ev.Account, ev.ChainID)
	})
}

func (w *accountWatcher) dropSubscription() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	w.subscribedType = ""
}
