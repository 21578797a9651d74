package events

import (
	"context"
	"log/slog"

	"walletd/config"
	"walletd/internal/domain/service"

	"go.uber.org/fx"
)

// PublisherParams holds dependencies for the event bus, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewSessionEventBus creates the in-process bus, chained to a webhook
// publisher when one is configured.
func NewSessionEventBus(params PublisherParams) *Bus {
	var forward service.SessionEventPublisher
	if params.Config.Events != nil && params.Config.Events.LocalEndpoint != "" {
		params.Logger.Info("Forwarding session events to local endpoint",
			slog.String("endpoint", params.Config.Events.LocalEndpoint),
		)
		forward = NewWebhookPublisher(params.Config.Events.LocalEndpoint, params.Logger)
	}

	bus := NewBus(params.Logger, forward)

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return bus.Close()
		},
	})

	return bus
}

// AsSessionEventPublisher exposes the bus under its domain interface.
func AsSessionEventPublisher(bus *Bus) service.SessionEventPublisher {
	return bus
}
