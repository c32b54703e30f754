package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "SIRA"

// envBoundKeys lists every leaf key so that AutomaticEnv can resolve it even
// when no config file mentions it (viper only consults env vars for keys it
// already knows about during Unmarshal).
var envBoundKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout", "server.request_timeout", "server.allowed_origins",
	"grpc.enabled", "grpc.port", "grpc.max_recv_msg_size",
	"log.level", "log.format",
	"database.host", "database.port", "database.user", "database.password", "database.db_name",
	"database.ssl_mode", "database.max_open_conns", "database.max_idle_conns",
	"database.conn_max_lifetime", "database.migration_path", "database.auto_migrate",
	"redis.addr", "redis.password", "redis.db", "redis.pool_size", "redis.dial_timeout",
	"redis.read_timeout", "redis.write_timeout", "redis.key_prefix", "redis.embedding_ttl",
	"kafka.brokers", "kafka.group_id", "kafka.auto_offset_reset", "kafka.request_topic",
	"kafka.event_topic", "kafka.dead_letter_topic", "kafka.max_retries", "kafka.retry_backoff",
	"kafka.sasl_mechanism", "kafka.sasl_username", "kafka.sasl_password", "kafka.tls_enabled", "kafka.tls_ca_file",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.prefix",
	"minio.use_ssl", "minio.region",
	"artifacts.dir",
	"embedding.provider", "embedding.endpoint", "embedding.api_key", "embedding.model",
	"embedding.dimension", "embedding.timeout", "embedding.max_concurrency",
	"pipeline.similarity_threshold",
	"worker.concurrency", "worker.timeout",
	"metrics.enabled", "metrics.namespace", "metrics.path",
}

// newViper builds a pre-configured Viper instance: YAML file type, SIRA_ env
// prefix, automatic env binding, and a key replacer that maps "." → "_" so
// that nested keys like "database.host" resolve to "SIRA_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envBoundKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any SIRA_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from SIRA_* environment variables,
// with no config file required.
//
//	SIRA_<SECTION>_<FIELD>   e.g.  SIRA_DATABASE_HOST, SIRA_EMBEDDING_ENDPOINT
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrEnv loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is written.  Callers apply only the
// hot-reloadable settings (currently the log level).  An invalid file is
// skipped and reported through onError when it is non-nil.
func Watch(configPath string, onChange func(*Config), onError func(error)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad is a convenience wrapper around Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
