package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/logging"
)

// DefaultShutdownTimeout bounds graceful shutdown when the caller passes no
// explicit timeout.
const DefaultShutdownTimeout = 10 * time.Second

// StartAsync starts the http server in the background and returns a callback
// for its shutdown. The timeout bounds how long shutdown waits for in-flight
// requests; long-lived WebSocket connections are closed by the fanout hub,
// not by this drain.
func StartAsync(srv *http.Server, shutdownTimeout time.Duration, logger zerolog.Logger) (shutdownFunc func(context.Context)) {
	logger = logger.With().Str(logging.FieldModule, "http").Logger()

	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logger.Err(err).Msg("HTTP server error")
		}
	}()

	return func(ctx context.Context) {
		logger.Info().Msg("Shutting down HTTP server")

		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Err(err).Msg("Failed to shutdown HTTP server")
			return
		}

		logger.Info().Msg("HTTP server shutdown complete")
	}
}
