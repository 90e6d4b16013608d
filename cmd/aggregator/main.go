package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/config"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/dedupe"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/identity"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/metrics"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/normalize"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/publisher"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/scheduler"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/service"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/source/ical"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/state"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/storage/filestore"
	"github.com/SkySoft-Norway/herimoss-sub001/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info", "json")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
		logger.Error("failed to create state directory", "dir", cfg.State.Dir, "error", err)
		os.Exit(1)
	}

	// Core pipeline
	normalizer := normalize.New(normalize.Config{
		Location:     loc,
		DefaultCity:  cfg.DefaultCity,
		VenueAliases: cfg.Normalize.VenueAliases,
		KnownCities:  cfg.Normalize.KnownCities,
		Categories:   cfg.Normalize.Categories,
	}, logger)

	deduplicator := dedupe.New(identity.NewGenerator(loc), logger,
		dedupe.WithThreshold(cfg.Dedup.FuzzyThreshold),
		dedupe.WithWindow(cfg.Dedup.TimeWindow()),
	)

	store := filestore.New(cfg.State.Dir, cfg.State.MaxArchive, logger)
	reconciler := state.NewReconciler(store, logger, state.WithArchiveLimit(cfg.State.MaxArchive))
	tracker := service.NewSourceTracker()

	sources := make([]service.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources = append(sources, ical.New(ical.Config{
			ID:             sc.ID,
			Name:           sc.Name,
			URL:            sc.URL,
			HorizonDays:    sc.HorizonDays,
			Timeout:        cfg.HTTP.Timeout,
			UserAgent:      cfg.HTTP.UserAgent,
			MaxAttempts:    cfg.HTTP.Retry.MaxAttempts,
			InitialBackoff: cfg.HTTP.Retry.InitialBackoff,
			MaxBackoff:     cfg.HTTP.Retry.MaxBackoff,
		}, logger))
	}

	var opts []service.Option

	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("connected to database")

		opts = append(opts, service.WithMirror(
			postgres.NewEventStore(db),
			postgres.NewDuplicateStore(db),
			postgres.NewRunStore(db),
			postgres.NewTransactionManager(db),
		))
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:           cfg.RabbitMQ.URL,
			Exchange:      cfg.RabbitMQ.Exchange,
			RoutingPrefix: cfg.RabbitMQ.RoutingPrefix,
			QueueName:     cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()

		opts = append(opts, service.WithPublisher(rabbitMQ))
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to create metrics collector", "error", err)
		os.Exit(1)
	}
	opts = append(opts, service.WithMetrics(collector))

	pipeline := service.NewPipelineService(
		sources,
		normalizer,
		deduplicator,
		reconciler,
		store,
		store,
		tracker,
		logger,
		cfg.State,
		opts...,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sched, err := scheduler.NewScheduler(pipeline, cfg.Schedule, cfg.RunTimeout, loc, logger)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	if *once {
		if err := sched.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Metrics.Listen != "" {
		srv := newStatusServer(cfg.Metrics.Listen, collector, tracker)
		go func() {
			logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("starting event aggregator",
		"sources", len(sources),
		"schedule", cfg.Schedule,
		"state_dir", store.Dir(),
		"database", cfg.Database.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// newStatusServer exposes Prometheus metrics and the last fetch outcome of
// every source.
func newStatusServer(addr string, collector *metrics.Collector, tracker *service.SourceTracker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tracker.Snapshot())
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func setupLogger(level, format string) *slog.Logger {
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
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
