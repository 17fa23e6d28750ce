package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dfs-summarizer/summarizer/internal/model"

	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "summarizer"

	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func ConfigFromModel(cfg model.Server) Config {
	return Config{
		Addr:            cfg.Addr,
		ShutdownTimeout: cfg.ShutdownTimeoutDuration(),
		AllowedOrigins:  append([]string(nil), cfg.AllowedOrigins...),
	}
}

// Run serves handler on cfg.Addr until ctx is cancelled, then shuts the
// server down gracefully. Streams still open after ShutdownTimeout get
// their connections closed, which cancels their runs.
func Run(ctx context.Context, cfg Config, handler http.Handler) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, cfg, ln, handler)
}

// Serve is Run on an existing listener. The listener is closed on return.
func Serve(ctx context.Context, cfg Config, ln net.Listener, handler http.Handler) error {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// streams last as long as the worker runs
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
		// requests outlive ctx until the shutdown timeout is over
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	var g errgroup.Group
	stop := make(chan struct{})
	g.Go(func() error {
		slog.InfoContext(ctx, "http server listening", "service", serviceName, "addr", ln.Addr().String())
		err := srv.Serve(ln)
		close(stop)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
		}
		slog.InfoContext(ctx, "shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
