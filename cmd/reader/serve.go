package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/FocuswithJustin/JuniperReader/internal/api"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/server"
	"github.com/FocuswithJustin/JuniperReader/internal/web"
)

// ServeCmd serves the reader page, API and WebSocket.
type ServeCmd struct {
	Addr            string        `help:"Listen address (overrides server.addr)"`
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests on shutdown" default:"10s"`
}

func (c *ServeCmd) Run(g *Globals) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, app.Close()) }()

	page, err := web.New(app)
	if err != nil {
		return err
	}
	srv, err := api.New(api.Config{
		AllowedOrigins:     app.Config.Server.AllowedOrigins,
		APIKey:             string(app.Config.Server.APIKey),
		RateLimitPerMinute: app.Config.Server.RateLimitPerMinute,
		RateLimitBurst:     app.Config.Server.RateLimitBurst,
		Web:                page,
	}, app)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, srv.Close()) }()

	addr := app.Config.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	port := 0
	if _, p, err := net.SplitHostPort(ln.Addr().String()); err == nil {
		port, _ = strconv.Atoi(p)
	}
	storage := "memory"
	if path := app.Config.Storage.Path; path != "" {
		storage = server.AbsPath(path)
	}
	logging.ServerStartup("reader", "http", port,
		"addr", ln.Addr().String(),
		"websocket_protocol", "ws",
		"storage", storage)
	if app.Config.Server.APIKey == "" {
		logging.SecurityEvent("authentication_configured", "serve",
			"enabled", false,
			"note", "all requests allowed")
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Log.Info("shutting down", "timeout", c.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown; closing
	// the hub ends them.
	srv.Close()
	return httpSrv.Shutdown(shutdownCtx)
}
