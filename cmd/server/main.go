package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hn_insight/internal/app"
	"hn_insight/internal/config"
	"hn_insight/internal/scheduler"
	"hn_insight/internal/server"
	"hn_insight/internal/translate"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	titles, err := translate.NewTitleCache(
		translate.NewClient(translate.Config{
			BaseURL: cfg.Translate.BaseURL,
			Timeout: cfg.Translate.Timeout,
		}, logger),
		cfg.Translate.TargetLang,
		cfg.Translate.CacheSize,
		logger,
	)
	if err != nil {
		logger.Error("failed to create title cache", "error", err)
		os.Exit(1)
	}
	defer titles.Close()

	api := server.New(server.Config{
		Jobs:       a.Service,
		Stories:    a.Stories,
		Titles:     titles,
		Pinger:     a.Generator,
		Logger:     logger,
		JobTimeout: cfg.Lock.RunTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled() {
		sched, err := scheduler.NewScheduler(a.Service, cfg.Schedule, cfg.Lock.RunTimeout, logger)
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting hn insight server",
			"addr", cfg.HTTP.Addr,
			"hn_backend", cfg.HN.Backend,
			"lock_backend", cfg.Lock.Backend,
			"ai_provider", cfg.AI.Provider,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
