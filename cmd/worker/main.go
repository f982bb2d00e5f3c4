// Command worker consumes scan requests from Kafka and publishes the
// recognized decks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/deckscan/internal/application/scanning"
	"github.com/turtacn/deckscan/internal/bootstrap"
	"github.com/turtacn/deckscan/internal/config"
	"github.com/turtacn/deckscan/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/deckscan/internal/interfaces/http"
	"github.com/turtacn/deckscan/internal/interfaces/http/handlers"
	"github.com/turtacn/deckscan/internal/interfaces/http/middleware"
)

const defaultHealthPort = 8081

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath     string
	healthPort     int
	consumers      int
	skipTopicSetup bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to configuration file (default: DECKSCAN_* environment)")
	flag.IntVar(&opts.healthPort, "health-port", defaultHealthPort, "port serving /healthz, /readyz and metrics")
	flag.IntVar(&opts.consumers, "consumers", 0, "consumer group members in this process (default: worker.concurrency)")
	flag.BoolVar(&opts.skipTopicSetup, "skip-topic-setup", false, "do not create the scan topics on startup")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.LoadOrEnv(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	consumers := opts.consumers
	if consumers <= 0 {
		consumers = cfg.Worker.Concurrency
	}
	logger.Info("starting deckscan worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("consumers", consumers),
		logging.String("request_topic", cfg.Kafka.RequestTopic))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.NewInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	// Consuming only starts once an engine is installed.
	r, err := infra.LoadRecognizer(ctx)
	if err != nil {
		return fmt.Errorf("initial corpus load: %w", err)
	}
	svc := scanning.NewService(r, scanning.Config{
		Concurrency: cfg.Worker.Concurrency,
		MaxBatch:    cfg.Worker.MaxBatch,
	}, infra.Metrics, logger)

	if !opts.skipTopicSetup {
		ensureTopics(ctx, cfg.Kafka, logger)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       "all",
		MaxRetries: cfg.Kafka.MaxRetries,
	}, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	worker, err := scanning.NewWorker(svc, producer, cfg.Kafka.ResultTopic, infra.Metrics, logger)
	if err != nil {
		return err
	}

	for i := 0; i < consumers; i++ {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			Topics:      []string{cfg.Kafka.RequestTopic},
			StartOffset: cfg.Kafka.StartOffset,
			RetryConfig: kafka.RetryConfig{
				MaxRetries:      cfg.Kafka.MaxRetries,
				RetryBackoff:    cfg.Kafka.RetryBackoff,
				DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
			},
		}, producer, logger)
		if err != nil {
			return err
		}
		consumer.Subscribe(cfg.Kafka.RequestTopic, worker.Handle)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func(id int) {
			_ = consumer.Close()
			st := consumer.Stats()
			logger.Info("consumer stopped",
				logging.Int("consumer", id),
				logging.Int64("processed", st.Processed),
				logging.Int64("failed", st.Failed),
				logging.Int64("dead_lettered", st.DeadLettered))
		}(i)
	}

	collector := infra.Collector
	if !cfg.Metrics.Enabled {
		collector = nil
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(version, infra.HealthCheckers(svc.Ready)...),
		Logging:          middleware.DefaultLoggingConfig(),
		Mode:             cfg.Server.Mode,
		Logger:           logger,
		Metrics:          infra.Metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	})
	serverCfg := cfg.Server
	serverCfg.Port = opts.healthPort
	server := httpserver.NewServer(serverCfg, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})
	if cfg.Corpus.Watch {
		watcher, err := infra.NewCorpusWatcher(svc.Swap)
		if err != nil {
			return err
		}
		if watcher != nil {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	err = g.Wait()
	logger.Info("worker shutting down")
	return err
}

// ensureTopics creates the request, result and dead-letter topics. Brokers
// that auto-create topics or deny admin requests only produce a warning.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) {
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		logger.Warn("topic setup skipped", logging.Err(err))
		return
	}
	defer tm.Close()

	topics := kafka.DefaultTopics(cfg.RequestTopic, cfg.ResultTopic, cfg.DeadLetterTopic)
	if err := tm.EnsureTopics(ctx, topics); err != nil {
		logger.Warn("topic setup failed", logging.Err(err))
	}
}
