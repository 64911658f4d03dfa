package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oshokin/pump-monitor/internal/logger"
)

// Server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Serve runs handler on lis and blocks until ctx is canceled or the server
// fails. Shutdown is graceful.
func Serve(ctx context.Context, lis net.Listener, handler http.Handler) error {
	ctx = logger.WithName(ctx, "rest")

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.InfoKV(ctx, "HTTP API listening", "listen_address", lis.Addr().String())

	// Done channel is closed after Shutdown finishes so Serve returns only
	// once in-flight requests completed.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
		}
	}()

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP API stopped")

	return nil
}
