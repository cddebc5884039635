package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/postgres"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "rebuild the whole collection and exit")
	watch := flag.Bool("watch", false, "rebuild books whose markup changes on disk")
	debounce := flag.Duration("debounce", time.Second, "quiet period before a changed book is rebuilt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "library", cfg.Library.Root, "index", cfg.IndexDir())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	opts, err := library.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("failed to open library", "error", err)
		os.Exit(1)
	}
	defer opts.Store.Close()
	opts.Metrics = m

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, index ledger disabled", "error", err)
		} else {
			defer db.Close()
			l := ledger.New(db)
			if err := l.Migrate(ctx); err != nil {
				slog.Error("ledger migration failed", "error", err)
				os.Exit(1)
			}
			opts.Ledger = l
			checker.Register("postgres", health.PingCheck(l.Ping, false))
		}
	}

	if cfg.Kafka.Enabled {
		completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completeProducer.Close()
		opts.Notifier = publisher.NewNotifier(completeProducer, "indexer-"+uuid.NewString()[:8])

		eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer eventsProducer.Close()
		collector := analytics.NewCollector(eventsProducer, 1000)
		collector.Start(ctx)
		defer collector.Close()
		opts.Tracker = collector
	}

	svc, err := library.NewService(opts)
	if err != nil {
		slog.Error("failed to create library service", "error", err)
		os.Exit(1)
	}
	checker.Register("index", health.PingCheck(svc.Ping, true))

	if cfg.Metrics.Enabled && !*once {
		ops := metrics.NewServer("Book Search Indexer", cfg.Metrics.Port)
		ops.Handle("GET /health/live", checker.LiveHandler())
		ops.Handle("GET /health/ready", checker.ReadyHandler())
		shutdownMetrics := ops.Start()
		defer shutdownMetrics(context.Background())
	}

	if *once {
		report, err := svc.ReindexAll(ctx)
		if err != nil {
			slog.Error("reindex failed", "error", err)
			os.Exit(1)
		}
		for _, f := range report.Failed {
			slog.Error("book failed", "book_id", f.BookID, "kind", f.Kind, "error", f.Error)
		}
		slog.Info("reindex complete",
			"indexed", len(report.Indexed),
			"failed", len(report.Failed),
			"removed", len(report.Removed),
		)
		if !report.OK() {
			os.Exit(1)
		}
		return
	}

	var wg sync.WaitGroup
	if *watch {
		w, err := library.NewWatcher(svc.Collection(), svc, *debounce)
		if err != nil {
			slog.Error("failed to watch collection", "error", err)
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				slog.Error("watcher error", "error", err)
			}
		}()
	}

	if cfg.Kafka.Enabled {
		requestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ReindexRequests,
			consumer.HandleReindexRequest(svc))
		indexConsumer := consumer.New(requestConsumer)
		slog.Info("indexer consuming reindex requests",
			"topic", cfg.Kafka.Topics.ReindexRequests,
			"group", cfg.Kafka.ConsumerGroup,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := indexConsumer.Start(ctx); err != nil {
				slog.Error("consumer error", "error", err)
			}
		}()
	}

	if !*watch && !cfg.Kafka.Enabled {
		slog.Error("nothing to do: pass -once, -watch or enable kafka")
		os.Exit(2)
	}

	wg.Wait()
	slog.Info("indexer service stopped")
}
