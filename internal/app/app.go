package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"hn_insight/internal/config"
	"hn_insight/internal/publisher"
	"hn_insight/internal/scraper"
	"hn_insight/internal/service"
	"hn_insight/internal/source/hn"
	"hn_insight/internal/storage/postgres"
	redislock "hn_insight/internal/storage/redis"
	"hn_insight/internal/summary"
)

// App holds the long-lived dependencies shared by every command.
type App struct {
	DB        *sqlx.DB
	Stories   *postgres.StoryStore
	Generator *summary.Generator
	Service   *service.StoryService

	closers []func() error
}

// New connects to the database, the lock backend and, when enabled, the
// message broker, then builds the story service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logger.Info("connected to database")

	locker, err := a.newLocker(ctx, cfg, db, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		pub = rabbitMQ
	}

	a.Stories = postgres.NewStoryStore(db)
	a.Generator = summary.New(summary.Options{
		Provider: cfg.AI.Provider,
		Timeout:  cfg.AI.Timeout,
		OpenAI: summary.ProviderDefaults{
			APIKey:  cfg.AI.OpenAI.APIKey,
			BaseURL: cfg.AI.OpenAI.BaseURL,
			Model:   cfg.AI.OpenAI.Model,
		},
		MiniMax: summary.ProviderDefaults{
			APIKey:  cfg.AI.MiniMax.APIKey,
			BaseURL: cfg.AI.MiniMax.BaseURL,
			Model:   cfg.AI.MiniMax.Model,
		},
	}, logger)

	a.Service = service.NewStoryService(
		NewSource(cfg.HN, logger),
		a.Stories,
		postgres.NewSummaryStore(db),
		locker,
		scraper.New(scraper.Config{
			Timeout:   cfg.Scraper.Timeout,
			MaxChars:  cfg.Scraper.MaxChars,
			UserAgent: cfg.Scraper.UserAgent,
		}, logger),
		a.Generator,
		postgres.NewTransactionManager(db),
		pub,
		logger,
		service.Options{
			Ingest:  cfg.Ingest,
			Retry:   cfg.Retry,
			LockTTL: cfg.Lock.TTL,
		},
	)

	return a, nil
}

func (a *App) newLocker(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *slog.Logger) (service.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return postgres.NewLockStore(db), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	logger.Info("using redis job locks", "addr", cfg.Redis.Addr)
	return redislock.NewLocker(client, redislock.DefaultPrefix), nil
}

// NewSource returns the configured Hacker News backend.
func NewSource(cfg config.HNConfig, logger *slog.Logger) service.Source {
	hnCfg := hn.Config{
		Timeout:        cfg.Timeout,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		MaxComments:    cfg.MaxComments,
	}
	if cfg.Backend == hn.FirebaseID {
		hnCfg.BaseURL = cfg.FirebaseURL
		return hn.NewFirebase(hnCfg, logger)
	}
	hnCfg.BaseURL = cfg.AlgoliaURL
	return hn.NewAlgolia(hnCfg, logger)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
