package main

import (
	"context"
	"log/slog"
	"os"

	"walletd/config"
	"walletd/internal/delivery"
	"walletd/internal/delivery/http"
	httpmiddleware "walletd/internal/delivery/http/middleware"
	"walletd/internal/delivery/http/router/handler"
	"walletd/internal/delivery/watcher"
	"walletd/internal/domain/repository"
	"walletd/internal/infra/auth"
	"walletd/internal/infra/events"
	logs "walletd/internal/infra/log"
	"walletd/internal/infra/marketplace"
	"walletd/internal/infra/persistence/file"
	"walletd/internal/infra/persistence/postgres"
	"walletd/internal/infra/wallet"
	"walletd/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			newSessionStore,
		),
	)
}

// newSessionStore selects the snapshot backend from configuration. The file
// store is the default; Postgres is for shared multi-device deployments.
func newSessionStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (repository.SessionStore, error) {
	if cfg.Store.Backend == "postgres" {
		db, err := postgres.New(lc, cfg, logger)
		if err != nil {
			return nil, err
		}

		return postgres.NewSessionStore(db, logger)
	}

	return file.NewSessionStore(cfg.Store.Path, logger), nil
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			wallet.NewRegistry,
			auth.NewCredentialDeriver,
			marketplace.NewClient,
			marketplace.AsAuthClient,
			marketplace.AsListingClient,
			marketplace.AsChannelClient,
			marketplace.AsCollectionClient,
			marketplace.AsTicketClient,
			marketplace.AsNotificationClient,
			events.NewSessionEventBus,
			events.AsSessionEventPublisher,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthController,
			impl.NewAccountWatcher,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			httpmiddleware.NewSessionMiddleware,
			httpmiddleware.NewErrorMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewSessionHandler,
			handler.NewMarketHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			fx.Annotate(
				watcher.NewRunner,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
