package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultSimilarityThreshold, cfg.Pipeline.SimilarityThreshold)
	assert.Equal(t, DefaultEmbeddingEndpoint, cfg.Embedding.Endpoint)
	assert.Equal(t, DefaultKafkaDLQTopic, cfg.Kafka.DeadLetterTopic)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Pipeline.SimilarityThreshold = 0.6
	cfg.Embedding.Provider = "openai"
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Pipeline.SimilarityThreshold)
	assert.Empty(t, cfg.Embedding.Endpoint)
}

func TestApplyDefaults_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
