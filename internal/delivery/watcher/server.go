// Package watcher hosts the background session runtime: the controller run
// loop, the startup restore and the account drift watcher.
package watcher

import (
	"context"
	"log/slog"
	"sync"

	"walletd/internal/delivery"
	"walletd/internal/domain/lifecycle"
	"walletd/internal/domain/service"
	"walletd/internal/errors"
	"walletd/internal/infra/events"
	"walletd/internal/usecase"

	"go.uber.org/fx"
)

// RunnerParams holds dependencies for the session runner.
type RunnerParams struct {
	fx.In

	Lc      fx.Lifecycle
	Logger  *slog.Logger
	Session usecase.SessionUsecase
	Watcher usecase.DriftWatcher
	Bus     *events.Bus
}

type sessionRunner struct {
	logger  *slog.Logger
	session usecase.SessionUsecase
	watcher usecase.DriftWatcher
	bus     *events.Bus

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates the background delivery driving the session machinery.
func NewRunner(params RunnerParams) (delivery.Delivery, error) {
	runner := &sessionRunner{
		logger:  params.Logger,
		session: params.Session,
		watcher: params.Watcher,
		bus:     params.Bus,
		done:    make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: runner.stop,
	})

	return runner, nil
}

// Serve runs the controller loop in the foreground with the restore and the
// drift watcher beside it, until stopped.
func (r *sessionRunner) Serve(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer close(r.done)

	unsubscribe := r.bus.Subscribe(func(ev *service.SessionEvent) {
		attrs := []any{slog.String("state", string(ev.State))}
		if ev.Snapshot != nil {
			attrs = append(attrs,
				slog.String("wallet_type", ev.Snapshot.WalletType.String()),
				slog.String("account", ev.Snapshot.Account),
			)
		}
		if ev.ErrorCode != "" {
			attrs = append(attrs, slog.String("error_code", ev.ErrorCode))
		}
		r.logger.Info("Session state changed", attrs...)
	})
	defer unsubscribe()

	// Reattach the persisted session before drift reports start flowing.
	go func() {
		if err := r.session.Restore(runCtx); err != nil {
			r.logger.Warn("Session restore failed", "error", err)
		}
	}()

	go func() {
		if err := r.watcher.Watch(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("Account watcher stopped", "error", err)
		}
	}()

	r.logger.Info("Starting session runtime")
	if err := r.session.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.WithStack(err)
	}

	return nil
}

// stop cancels the runtime and waits for the loop to drain.
func (r *sessionRunner) stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	r.logger.Info("Shutting down session runtime")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer shutdownCancel()

	select {
	case <-r.done:
		return nil
	case <-shutdownCtx.Done():
		return errors.WithStack(shutdownCtx.Err())
	}
}
