// Command worker consumes prediction requests from Kafka and stores the
// resulting diagnoses.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sira-Clinica/backend/internal/bootstrap"
	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/messaging/kafka"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	httpserver "github.com/Sira-Clinica/backend/internal/interfaces/http"
	"github.com/Sira-Clinica/backend/internal/interfaces/http/handlers"
	"github.com/Sira-Clinica/backend/internal/interfaces/messaging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const (
	defaultHealthPort = 8081
	shutdownTimeout   = 30 * time.Second
	topicSetupTimeout = 15 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv("SIRA_CONFIG"), "path to configuration file (default: SIRA_* environment)")
	workerCount := flag.Int("workers", 0, "number of consumers in the group (overrides worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		bootstrap.Fatal(nil, "failed to load configuration", err)
	}
	if *workerCount > 0 {
		cfg.Worker.Concurrency = *workerCount
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		bootstrap.Fatal(nil, "failed to build logger", err)
	}
	if !cfg.Kafka.Enabled() {
		bootstrap.Fatal(logger, "worker cannot start", errors.Configuration("kafka.brokers is not configured"))
	}
	logger.Info("starting Sira triage worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("consumers", cfg.Worker.Concurrency),
		logging.String("topic", cfg.Kafka.RequestTopic),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		bootstrap.Fatal(logger, "failed to initialize application", err)
	}
	defer app.Close()
	if app.DB == nil {
		logger.Warn("database not configured, diagnoses will not be stored")
	}

	ensureTopics(ctx, cfg.Kafka, logger)

	consumers, err := startConsumers(ctx, app)
	if err != nil {
		bootstrap.Fatal(logger, "failed to start consumers", err)
	}

	healthSrv := startHealthServer(cfg, *healthPort, app)

	<-ctx.Done()
	logger.Info("shutdown signal received, draining consumers")

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Error("consumer close error", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("Sira triage worker stopped")
}

// ensureTopics creates the request, event and dead-letter topics.  Brokers
// that forbid topic creation are tolerated.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, topicSetupTimeout)
	defer cancel()

	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err == nil {
		err = tm.EnsureTopics(ctx, kafka.TriageTopics(cfg))
		_ = tm.Close()
	}
	if err != nil {
		logger.Warn("could not ensure kafka topics", logging.Err(err))
	}
}

// startConsumers joins the consumer group with worker.concurrency members.
// Each member handles its partitions sequentially.
func startConsumers(ctx context.Context, app *bootstrap.App) ([]*kafka.Consumer, error) {
	cfg := app.Config
	handler := messaging.NewPredictionHandler(app.Service, cfg.Worker.Timeout, app.Logger)

	ccfg := kafka.ConsumerConfigFrom(cfg.Kafka)
	ccfg.RetryConfig.Retryable = messaging.Retryable

	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		c, err := kafka.NewConsumer(ccfg, app.Logger.With(logging.Int("consumer", i)),
			kafka.WithDeadLetter(app.Producer),
			kafka.WithRecorder(app.Metrics))
		if err != nil {
			closeAll(consumers)
			return nil, err
		}
		c.Subscribe(cfg.Kafka.RequestTopic, handler.Handle)
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			closeAll(consumers)
			return nil, err
		}
		consumers = append(consumers, c)
	}
	return consumers, nil
}

func closeAll(consumers []*kafka.Consumer) {
	for _, c := range consumers {
		_ = c.Close()
	}
}

// startHealthServer serves the probes and metrics on their own port.
func startHealthServer(cfg *config.Config, port int, app *bootstrap.App) *httpserver.Server {
	checkers := make([]handlers.HealthChecker, 0, len(app.Checkers))
	for _, c := range app.Checkers {
		checkers = append(checkers, handlers.CheckerFunc{Component: c.Name, Fn: c.Check})
	}

	rcfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, checkers...),
		Logger:        app.Logger,
	}
	if cfg.Metrics.Enabled {
		rcfg.MetricsHandler = app.Collector.Handler()
	}
	gin.SetMode(gin.ReleaseMode)

	scfg := cfg.Server
	scfg.Port = port
	srv := httpserver.NewServer(scfg, httpserver.NewRouter(rcfg), app.Logger)
	go func() {
		if err := srv.Start(); err != nil {
			app.Logger.Error("health server exited", logging.Err(err))
		}
	}()
	return srv
}
