package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/pricehawk/internal/api"
	"github.com/maltedev/pricehawk/internal/browser"
	"github.com/maltedev/pricehawk/internal/cache"
	"github.com/maltedev/pricehawk/internal/config"
	"github.com/maltedev/pricehawk/internal/database"
	"github.com/maltedev/pricehawk/internal/events"
	"github.com/maltedev/pricehawk/internal/logger"
	"github.com/maltedev/pricehawk/internal/ratelimit"
	"github.com/maltedev/pricehawk/internal/rules"
	"github.com/maltedev/pricehawk/internal/scraper"
	"github.com/maltedev/pricehawk/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	table, err := rules.Load(cfg.Scraper.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load extraction rules: %w", err)
	}
	log.Info("extraction rules loaded", "version", table.Version, "platforms", len(table.Platforms))

	health := api.HealthDeps{Mode: cfg.Scraper.Mode}

	var fetcher scraper.Fetcher
	switch cfg.Scraper.Mode {
	case scraper.ModeMock:
		fetcher = scraper.NewRandomMockFetcher()
	default:
		manager, err := browser.New(&browser.Options{
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			Settle:            cfg.Browser.Settle,
			SelectorTimeout:   cfg.Browser.SelectorTimeout,
			UserAgent:         cfg.Browser.UserAgent,
			ProxyServer:       cfg.Browser.ProxyServer,
			MaxSessions:       cfg.Browser.MaxSessions,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize browser: %w", err)
		}
		defer manager.Close()
		pacer := ratelimit.NewPacer(cfg.Scraper.MinInterval, cfg.Scraper.MaxInterval)
		fetcher = scraper.NewLiveFetcher(manager, log).WithPacer(pacer)
		health.Browser = manager
	}
	service := scraper.NewService(table, fetcher, cfg.Scraper.Mode, log)

	var store cache.Store
	redisClient, err := connectRedis(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, running without cache", "addr", cfg.Redis.Addr, "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = cache.NewRedisStore(redisClient)
	}
	gateway := cache.NewGateway(store, cfg.Cache.TTL, log)
	if gateway.Enabled() {
		health.Cache = gateway
	}

	var (
		recorder tracker.Recorder
		history  api.HistoryReader
	)
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		recorder = events.NewPublisher(db, log)
		history = database.NewHistoryRepository(db)
		health.Database = db

		if redisClient != nil {
			relay := database.NewRelay(database.NewOutboxRepository(db), redisClient, log, database.RelayConfig{
				PollInterval: cfg.Relay.PollInterval,
				BatchSize:    cfg.Relay.BatchSize,
			})
			health.Outbox = relay
			go func() {
				if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("relay stopped with error", "error", err)
				}
			}()
		} else {
			log.Warn("outbox relay disabled, events stay pending until redis is available")
		}
	}

	handlers := api.NewHandlers(tracker.New(service, gateway, recorder, log), history, health, log)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handlers, api.RouterConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "mode", cfg.Scraper.Mode, "cache", gateway.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// connectRedis returns a nil client when redis is disabled.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
