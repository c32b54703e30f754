// Package bootstrap wires configuration, logging, the triage pipeline and the
// optional infrastructure into an App shared by every binary.
package bootstrap

import (
	"context"
	"os"
	"strings"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres/repositories"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/redis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/messaging/kafka"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/prometheus"
	"github.com/Sira-Clinica/backend/internal/infrastructure/storage/minio"
	"github.com/Sira-Clinica/backend/internal/intelligence/embedding"
	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Artifact sources reported by the artifacts_loaded gauge.
const (
	ArtifactSourceLocal = "local"
	ArtifactSourceMinIO = "minio"
)

// LoadConfig reads configPath, or the SIRA_* environment when it is empty.
// Every failure is a configuration error.
func LoadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to load configuration")
	}
	return cfg, nil
}

// NewLogger builds the process logger from cfg and installs it as the
// package default.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "invalid log level")
	}
	log, err := logging.NewLogger(logging.LogConfig{Level: level, Format: cfg.Format})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to build logger")
	}
	logging.SetDefault(log)
	return log, nil
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	embedder       symptom_norm.Embedder
	skipInfra      bool
	skipMessaging  bool
	skipArtifactDL bool
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e symptom_norm.Embedder) Option {
	return func(o *buildOptions) { o.embedder = e }
}

// PipelineOnly skips Postgres, Redis and Kafka.  The resulting service
// predicts and normalizes without storing anything.
func PipelineOnly() Option {
	return func(o *buildOptions) { o.skipInfra = true }
}

// WithoutMessaging skips the Kafka producer.
func WithoutMessaging() Option {
	return func(o *buildOptions) { o.skipMessaging = true }
}

// WithoutArtifactSync keeps the local artifact directory as is.
func WithoutArtifactSync() Option {
	return func(o *buildOptions) { o.skipArtifactDL = true }
}

// HealthChecker is a named readiness probe.
type HealthChecker struct {
	Name  string
	Check func(ctx context.Context) error
}

// App holds every long-lived component of a process.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.TriageMetrics
	Pipeline  *triage_model.Pipeline
	DB        *postgres.Connection
	Redis     *redis.Client
	Cache     redis.Cache
	Producer  *kafka.Producer
	Service   apptriage.Service
	Checkers  []HealthChecker

	closers []func() error
}

// Build starts the components in order: artifact sync, bundle, Redis,
// pipeline, Postgres with migrations, Kafka producer.  Any configuration
// error aborts; a failed artifact sync or an unreachable Redis only
// degrade.  On error everything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger, opts ...Option) (_ *App, err error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if err = app.initMetrics(); err != nil {
		return nil, err
	}

	source := ArtifactSourceLocal
	if !o.skipArtifactDL && cfg.MinIO.Enabled() {
		source = app.syncArtifacts(ctx)
	}
	bundle, err := triage_model.LoadBundleDir(cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	app.Metrics.SetArtifactsLoaded(source)
	info := bundle.Info()
	log.Info("artifact bundle loaded",
		logging.String("dir", cfg.Artifacts.Dir),
		logging.String("source", source),
		logging.Int("input_dim", info.InputDim),
		logging.Int("labels", info.Labels))

	if !o.skipInfra && cfg.Redis.Enabled() {
		app.initRedis()
	}

	emb := o.embedder
	if emb == nil {
		embOpts := []embedding.Option{embedding.WithRecorder(app.Metrics), embedding.WithLogger(log)}
		if app.Cache != nil {
			embOpts = append(embOpts, embedding.WithCache(app.Cache, cfg.Redis.EmbeddingTTL))
		}
		if emb, err = embedding.New(cfg.Embedding, embOpts...); err != nil {
			return nil, err
		}
	}
	app.Pipeline, err = triage_model.NewPipeline(ctx, bundle, emb,
		triage_model.WithSimilarityThreshold(cfg.Pipeline.SimilarityThreshold),
		triage_model.WithRecorder(app.Metrics),
		triage_model.WithLogger(log.Named("pipeline")))
	if err != nil {
		return nil, err
	}

	var (
		diagRepo   diagnosis.Repository
		vitalsRepo vitals.Repository
	)
	if !o.skipInfra && cfg.Database.Enabled() {
		if err = app.initDatabase(); err != nil {
			return nil, err
		}
		diagRepo = repositories.InstrumentDiagnosisRepo(repositories.NewPostgresDiagnosisRepo(app.DB, log), app.Metrics)
		vitalsRepo = repositories.InstrumentVitalsRepo(repositories.NewPostgresVitalsRepo(app.DB, log), app.Metrics)
	}

	svcOpts := []apptriage.Option{apptriage.WithLogger(log)}
	if app.Cache != nil {
		svcOpts = append(svcOpts, apptriage.WithCache(app.Cache, apptriage.DefaultCacheTTL))
	}
	if !o.skipInfra && !o.skipMessaging && cfg.Kafka.Enabled() {
		if err = app.initProducer(); err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, apptriage.WithPublisher(app.Producer, cfg.Kafka.EventTopic))
	}
	app.Service = apptriage.NewService(app.Pipeline, diagRepo, vitalsRepo, svcOpts...)
	return app, nil
}

func (a *App) initMetrics() error {
	a.Collector = prometheus.NewNoopCollector()
	if a.Config.Metrics.Enabled {
		c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            a.Config.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, a.Logger)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create metrics collector")
		}
		a.Collector = c
	}
	a.Metrics = prometheus.NewTriageMetrics(a.Collector)
	return nil
}

// syncArtifacts pulls the bundle from MinIO.  A failure keeps whatever is in
// the local directory.
func (a *App) syncArtifacts(ctx context.Context) string {
	client, err := minio.NewClient(a.Config.MinIO, a.Logger)
	if err == nil {
		_, err = minio.NewArtifactStore(client, a.Logger).Pull(ctx, a.Config.Artifacts.Dir)
	}
	if err != nil {
		a.Logger.Warn("artifact sync failed, using local artifacts",
			logging.String("dir", a.Config.Artifacts.Dir),
			logging.Err(err))
		return ArtifactSourceLocal
	}
	a.Checkers = append(a.Checkers, HealthChecker{Name: "minio", Check: client.HealthCheck})
	return ArtifactSourceMinIO
}

func (a *App) initRedis() {
	rc := a.Config.Redis
	client, err := redis.NewClient(&redis.RedisConfig{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("redis unavailable, caching disabled", logging.String("addr", rc.Addr), logging.Err(err))
		return
	}
	a.Redis = client
	a.Cache = redis.NewRedisCache(client, a.Logger, redis.WithPrefix(rc.KeyPrefix))
	a.Checkers = append(a.Checkers, HealthChecker{Name: "redis", Check: client.Ping})
	a.closers = append(a.closers, client.Close)
}

func (a *App) initDatabase() error {
	conn, err := postgres.NewConnection(a.Config.Database, a.Logger)
	if err != nil {
		return err
	}
	a.DB = conn
	a.closers = append(a.closers, conn.Close)
	if a.Config.Database.AutoMigrate {
		if err := conn.RunMigrations(); err != nil {
			return err
		}
	}
	a.Checkers = append(a.Checkers, HealthChecker{Name: "postgres", Check: conn.HealthCheck})
	return nil
}

func (a *App) initProducer() error {
	p, err := kafka.NewProducer(kafka.ProducerConfigFrom(a.Config.Kafka), a.Logger)
	if err != nil {
		return err
	}
	a.Producer = p
	a.closers = append(a.closers, p.Close)
	return nil
}

// Close releases components in reverse start order and flushes the logger.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	if a.Logger != nil {
		_ = logging.Sync(a.Logger)
	}
	return first
}

// ExitCode maps a startup error to a process exit status: 2 for
// configuration errors, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.IsConfiguration(err) {
		return 2
	}
	return 1
}

// Fatal logs err and exits with ExitCode(err).
func Fatal(log logging.Logger, msg string, err error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log.Error(msg, logging.String(logging.FieldErrorCode, string(errors.GetCode(err))), logging.Err(err))
	_ = logging.Sync(log)
	os.Exit(ExitCode(err))
}
