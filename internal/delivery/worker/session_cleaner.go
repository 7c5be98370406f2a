// Package worker contains background deliveries that run alongside the
// HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"athfed/config"
	"athfed/internal/delivery"
	"athfed/internal/domain/lifecycle"
	"athfed/internal/usecase"
)

// sessionCleaner periodically deletes expired refresh session rows so
// the table only grows with live sessions.
type sessionCleaner struct {
	uc       usecase.AuthUsecase
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
}

// CleanerParams holds dependencies for the session cleaner, injected by Fx.
type CleanerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *slog.Logger
	Auth   usecase.AuthUsecase
}

// NewSessionCleaner creates the periodic session cleanup delivery.
func NewSessionCleaner(params CleanerParams) (delivery.Delivery, error) {
	cleaner := &sessionCleaner{
		uc:       params.Auth,
		logger:   params.Logger,
		interval: params.Cfg.Session.CleanupInterval,
		done:     make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: cleaner.stop,
	})

	return cleaner, nil
}

// Serve runs the cleanup loop until shutdown.
func (w *sessionCleaner) Serve(ctx context.Context) error {
	w.logger.Info("Starting session cleaner", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *sessionCleaner) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	deleted, err := w.uc.CleanupExpiredSessions(sweepCtx)
	if err != nil {
		w.logger.Error("Session cleanup failed", slog.Any("error", err))

		return
	}

	if deleted > 0 {
		w.logger.Info("Expired sessions deleted", slog.Int64("count", deleted))
	}
}

func (w *sessionCleaner) stop(ctx context.Context) error {
	w.logger.Info("Stopping session cleaner")
	close(w.done)

	return nil
}
