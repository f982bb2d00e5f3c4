// Command apiserver serves the scan API over HTTP.
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
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/deckscan/internal/interfaces/http"
	"github.com/turtacn/deckscan/internal/interfaces/http/handlers"
	"github.com/turtacn/deckscan/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: DECKSCAN_* environment)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("starting deckscan API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.NewInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	// The engine is installed once the corpus is loaded; until then /readyz
	// reports not_ready and scans answer 503.
	svc := scanning.NewService(nil, scanning.Config{
		Concurrency: cfg.Worker.Concurrency,
		MaxBatch:    cfg.Worker.MaxBatch,
	}, infra.Metrics, logger)

	collector := infra.Collector
	if !cfg.Metrics.Enabled {
		collector = nil
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		ScanHandler:      handlers.NewScanHandler(svc),
		HealthHandler:    handlers.NewHealthHandler(version, infra.HealthCheckers(svc.Ready)...),
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      cfg.Server.MaxBodySize,
		Mode:             cfg.Server.Mode,
		Logger:           logger,
		Metrics:          infra.Metrics,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	})
	server := httpserver.NewServer(cfg.Server, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})
	g.Go(func() error {
		r, err := infra.LoadRecognizer(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("initial corpus load: %w", err)
		}
		svc.Swap(r)
		return nil
	})

	if cfg.Corpus.Watch {
		watcher, err := infra.NewCorpusWatcher(svc.Swap)
		if err != nil {
			return err
		}
		if watcher != nil {
			g.Go(func() error { return watcher.Run(gctx) })
		} else {
			logger.Warn("corpus.watch is set but no corpus list is a local file")
		}
	}

	if configPath != "" {
		// Only the recognition and corpus sections are applied on reload;
		// server and client settings need a restart.
		err := config.Watch(configPath, func(next *config.Config) {
			r, err := infra.BuildRecognizer(gctx, next)
			if err != nil {
				logger.Error("recognizer rebuild after config change failed", logging.Err(err))
				return
			}
			svc.Swap(r)
			logger.Info("configuration reloaded", logging.String("path", configPath))
		}, func(err error) {
			logger.Warn("configuration reload rejected", logging.Err(err))
		})
		if err != nil {
			return err
		}
	}

	err = g.Wait()
	logger.Info("API server stopped")
	return err
}
