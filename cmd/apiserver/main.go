// Command apiserver serves the triage API over HTTP and gRPC.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sira-Clinica/backend/internal/bootstrap"
	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/Sira-Clinica/backend/internal/interfaces/grpc"
	"github.com/Sira-Clinica/backend/internal/interfaces/grpc/services"
	httpserver "github.com/Sira-Clinica/backend/internal/interfaces/http"
	"github.com/Sira-Clinica/backend/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("SIRA_CONFIG"), "path to configuration file (default: SIRA_* environment)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		bootstrap.Fatal(nil, "failed to load configuration", err)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		bootstrap.Fatal(nil, "failed to build logger", err)
	}
	logger.Info("starting Sira triage API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled),
		logging.Int("grpc_port", cfg.GRPC.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		bootstrap.Fatal(logger, "failed to initialize application", err)
	}
	defer app.Close()

	if *configPath != "" {
		watchLogLevel(*configPath, logger)
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		TriageHandler:    handlers.NewTriageHandler(app.Service, logger),
		DiagnosisHandler: handlers.NewDiagnosisHandler(app.Service, logger),
		HealthHandler:    handlers.NewHealthHandler(version, healthCheckers(app)...),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		RequestTimeout:   cfg.Server.RequestTimeout,
		Logger:           logger,
		Recorder:         app.Metrics,
		MetricsHandler:   metricsHandler(app),
	})
	httpSrv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithRecorder(app.Metrics),
			grpcserver.WithReflection(cfg.Server.Mode != "release"),
			grpcserver.WithGracefulTimeout(shutdownTimeout),
		)
		if err != nil {
			bootstrap.Fatal(logger, "failed to create gRPC server", err)
		}
		grpcSrv.RegisterService(&services.TriageServiceDesc, services.NewTriageService(app.Service, logger))
		go func() { errCh <- grpcSrv.Start() }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", logging.Err(err))
		}
	}
	logger.Info("servers stopped")
}

// watchLogLevel applies log.level changes from the config file without a
// restart.  Other settings need one.
func watchLogLevel(path string, logger logging.Logger) {
	config.Watch(path, func(cfg *config.Config) {
		level, err := logging.ParseLevel(strings.ToLower(cfg.Log.Level))
		if err != nil {
			logger.Warn("ignoring invalid log level", logging.String("level", cfg.Log.Level))
			return
		}
		if logging.SetLevel(logger, level) {
			logger.Info("log level updated", logging.String("level", string(level)))
		}
	}, func(err error) {
		logger.Warn("config reload rejected", logging.Err(err))
	})
}
