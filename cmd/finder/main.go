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

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"homefinder/internal/aggregator"
	"homefinder/internal/alert"
	"homefinder/internal/api"
	"homefinder/internal/config"
	"homefinder/internal/fetcher"
	"homefinder/internal/publisher"
	"homefinder/internal/scheduler"
	"homefinder/internal/snapshot"
	"homefinder/internal/source"
	"homefinder/internal/source/openrent"
	"homefinder/internal/source/rightmove"
	"homefinder/internal/source/spareroom"
	"homefinder/internal/source/zoopla"
	"homefinder/internal/storage/postgres"
)

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

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	var pub alert.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	adapters := buildAdapters(cfg, logger)
	if len(adapters) == 0 {
		logger.Error("no sources enabled")
		os.Exit(1)
	}
	agg := aggregator.New(adapters, cfg.Aggregate.RoundTimeout, logger)

	var store snapshot.Store = snapshot.NewMemoryStore()
	if cfg.Snapshots.Backend == "postgres" {
		store = postgres.NewSnapshotStore(db)
	}
	engine := snapshot.NewEngine(store, logger)

	alerts := alert.NewService(postgres.NewSubscriberStore(db), agg, engine, pub, logger, cfg.Alerts)
	sched := scheduler.NewScheduler(alerts, cfg.Alerts.Interval, cfg.Alerts.RoundTimeout, logger)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewHandler(agg, alerts, logger).Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting homefinder",
		"sources", agg.Sources(),
		"addr", cfg.HTTP.Addr,
		"interval", cfg.Alerts.Interval,
		"snapshots", cfg.Snapshots.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("homefinder stopped with error", "error", err)
		os.Exit(1)
	}
}

func buildAdapters(cfg *config.Config, logger *slog.Logger) []source.Adapter {
	direct := fetcher.New(fetcher.Config{
		Timeout:        cfg.Fetch.Timeout,
		MaxAttempts:    cfg.Fetch.Retry.MaxAttempts,
		InitialBackoff: cfg.Fetch.Retry.InitialBackoff,
		MaxBackoff:     cfg.Fetch.Retry.MaxBackoff,
		UserAgents:     cfg.Fetch.UserAgents,
		RPS:            cfg.Fetch.RateLimit.RPS,
		Burst:          cfg.Fetch.RateLimit.Burst,
	}, logger)

	var proxied fetcher.Fetcher
	if cfg.ProxyRequired() {
		proxy, err := fetcher.NewProxy(fetcher.ProxyConfig{
			BaseURL:    cfg.Fetch.Proxy.BaseURL,
			APIKey:     cfg.Fetch.Proxy.APIKey,
			Render:     cfg.Fetch.Proxy.Render,
			Timeout:    cfg.Fetch.Timeout,
			UserAgents: cfg.Fetch.UserAgents,
		}, logger)
		var cfgErr *fetcher.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			logger.Warn("fetch proxy not configured, proxied sources will fail", "setting", cfgErr.Setting)
			proxied = fetcher.Unavailable{Err: cfgErr}
		case err != nil:
			logger.Error("failed to create fetch proxy", "error", err)
			os.Exit(1)
		default:
			proxied = proxy
		}
	}

	pick := func(sc config.SourceConfig) fetcher.Fetcher {
		if sc.UseProxy {
			return proxied
		}
		return direct
	}

	var adapters []source.Adapter
	if s := cfg.Sources.Rightmove; !s.Disabled {
		adapters = append(adapters, rightmove.New(pick(s), s.BaseURL, logger))
	}
	if s := cfg.Sources.Zoopla; !s.Disabled {
		adapters = append(adapters, zoopla.New(pick(s), s.BaseURL, logger))
	}
	if s := cfg.Sources.OpenRent; !s.Disabled {
		adapters = append(adapters, openrent.New(pick(s), s.BaseURL, logger))
	}
	if s := cfg.Sources.SpareRoom; !s.Disabled {
		adapters = append(adapters, spareroom.New(pick(s), s.BaseURL, logger))
	}
	return adapters
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
