package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/babel/internal/app"
	"github.com/ent0n29/babel/internal/config"
)

type serveOptions struct {
	addr     string
	logLevel string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides APP_BIND_ADDR)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides APP_LOG_LEVEL)")
	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.BindAddr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := configureLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := app.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}
	log.Info("providers resolved",
		"translator", res.Providers.Translator,
		"synth", res.Providers.Synth,
		"recognizer", res.Providers.Recognizer,
		"capture", res.Providers.Capture,
	)

	res.Registry.StartReporter(ctx, cfg.SessionReportInterval, res.Metrics.SetActiveSessions)

	// No WriteTimeout: stream responses stay open for the life of a listener.
	// Request contexts derive from ctx so a signal ends open streams.
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           res.API.Router(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("babel listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			runErr = err
			log.Error("http server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := res.Cleanup(shutdownCtx); err != nil {
		log.Warn("cleanup incomplete", "err", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "err", err)
		_ = httpServer.Close()
	}
	log.Info("babel stopped")
	return runErr
}
