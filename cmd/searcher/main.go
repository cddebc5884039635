package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/redis"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	reindexOnStart := flag.Bool("reindex", false, "rebuild the whole collection before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "library", cfg.Library.Root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.NewServer("Book Search", cfg.Metrics.Port).Start()
		defer shutdownMetrics(context.Background())
	}

	opts, err := library.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("failed to open library", "error", err)
		os.Exit(1)
	}
	defer opts.Store.Close()
	opts.Metrics = m

	checker := health.NewChecker()

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			opts.Cache = queryCache
			checker.Register("redis", health.PingCheck(queryCache.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var indexLedger *ledger.Ledger
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, index ledger disabled", "error", err)
		} else {
			defer db.Close()
			indexLedger = ledger.New(db)
			if err := indexLedger.Migrate(ctx); err != nil {
				slog.Error("ledger migration failed", "error", err)
				os.Exit(1)
			}
			opts.Ledger = indexLedger
			checker.Register("postgres", health.PingCheck(indexLedger.Ping, false))
		}
	}

	var asyncReindex http.HandlerFunc
	origin := instanceName()
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer analyticsProducer.Close()
		collector := analytics.NewCollector(analyticsProducer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		opts.Tracker = collector

		reindexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ReindexRequests)
		defer reindexProducer.Close()
		var pending publisher.PendingRecorder
		if indexLedger != nil {
			pending = indexLedger
		}
		asyncReindex = ingesthandler.New(publisher.New(reindexProducer, pending)).Reindex

		completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completeProducer.Close()
		opts.Notifier = publisher.NewNotifier(completeProducer, origin)
		slog.Info("kafka integration enabled", "brokers", cfg.Kafka.Brokers, "origin", origin)
	}

	svc, err := library.NewService(opts)
	if err != nil {
		slog.Error("failed to create library service", "error", err)
		os.Exit(1)
	}

	if cfg.Kafka.Enabled {
		completeConsumer := kafka.NewBroadcastConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, origin,
			consumer.HandleIndexComplete(svc, origin))
		go func() {
			if err := consumer.New(completeConsumer).Start(ctx); err != nil {
				slog.Error("index-complete consumer error", "error", err)
			}
		}()
	}

	if *reindexOnStart {
		report, err := svc.ReindexAll(ctx)
		if err != nil {
			slog.Error("initial reindex failed", "error", err)
			os.Exit(1)
		}
		slog.Info("initial reindex done", "indexed", len(report.Indexed), "failed", len(report.Failed))
	}

	checker.Register("index", health.PingCheck(svc.Ping, true))

	mux := http.NewServeMux()
	var cacheAdmin handler.CacheAdmin
	if queryCache != nil {
		cacheAdmin = queryCache
	}
	handler.New(svc, cacheAdmin, asyncReindex).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "searcher"
	}
	return host + "-" + uuid.NewString()[:8]
}
