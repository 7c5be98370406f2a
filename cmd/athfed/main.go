package main

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"

	"athfed/config"
	"athfed/internal/delivery"
	"athfed/internal/delivery/http"
	httpmiddleware "athfed/internal/delivery/http/middleware"
	"athfed/internal/delivery/http/router/handler"
	"athfed/internal/delivery/worker"
	"athfed/internal/domain/service"
	"athfed/internal/infra/auth"
	logs "athfed/internal/infra/log"
	"athfed/internal/infra/mail"
	"athfed/internal/infra/persistence/postgres"
	infraredis "athfed/internal/infra/redis"
	"athfed/internal/usecase/impl"
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
		injectMiddleware(),
		injectHandler(),
		injectDelivery(),
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
		postgres.New,
		infraredis.NewClient,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			postgres.NewRefreshSessionRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newSystemClock,
			auth.NewArgon2Hasher,
			auth.NewJWTService,
			auth.NewTOTPService,
			infraredis.NewChallengeStore,
			infraredis.NewTwoFactorStore,
			infraredis.NewRateLimiter,
			mail.NewLogNotifier,
		),
	)
}

func newSystemClock() service.Clock {
	return service.SystemClock{}
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewAuthService,
			impl.NewTwoFactorService,
			impl.NewPasswordService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			httpmiddleware.NewAuthMiddleware,
			httpmiddleware.NewRateLimitMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
			handler.NewTwoFactorHandler,
			handler.NewPasswordHandler,
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
				worker.NewSessionCleaner,
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
