package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeErr  error
	closeCall int
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closeCall++
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducer(w, ProducerConfig{Brokers: []string{"localhost:9092"}}, nil)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))

	err := ValidateProducerConfig(ProducerConfig{})
	assert.True(t, errors.IsConfiguration(err))

	err = ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1})
	assert.Error(t, err)

	err = ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b:9092"},
		Security: SecurityConfig{SASLMechanism: "PLAIN"},
	})
	assert.Error(t, err)
}

func TestProducerConfigFrom(t *testing.T) {
	cfg := ProducerConfigFrom(config.KafkaConfig{
		Brokers:       []string{"k1:9092", "k2:9092"},
		MaxRetries:    5,
		SASLMechanism: "SCRAM-SHA-512",
		SASLUsername:  "sira",
		SASLPassword:  "secret",
	})
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "SCRAM-SHA-512", cfg.Security.SASLMechanism)

	mech, err := cfg.Security.saslMechanism()
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-512", mech.Name())
}

func TestSecurityConfig_UnknownMechanism(t *testing.T) {
	_, err := SecurityConfig{SASLMechanism: "GSSAPI"}.saslMechanism()
	assert.True(t, errors.IsConfiguration(err))
}

func TestSecurityConfig_TLS(t *testing.T) {
	tlsCfg, err := SecurityConfig{}.tlsConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	tlsCfg, err = SecurityConfig{TLSEnabled: true}.tlsConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsCfg)
	assert.Nil(t, tlsCfg.RootCAs)

	_, err = SecurityConfig{TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"}.tlsConfig()
	assert.True(t, errors.IsConfiguration(err))
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   TopicDiagnosisCreated,
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"h": "1"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, TopicDiagnosisCreated, w.written[0].Topic)
	assert.Equal(t, "k", string(w.written[0].Key))
	assert.Equal(t, "v", string(w.written[0].Value))
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("1")}}, w.written[0].Headers)
	assert.False(t, w.written[0].Time.IsZero())

	sent, failed, bytes := p.Metrics()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, int64(1), bytes)
}

func TestPublish_Rejects(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Value: []byte("v")})))
	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t"})))

	big := make([]byte, 1024*1024+1)
	assert.True(t, errors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big})))
}

func TestPublish_WriteFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{writeErr: stderrors.New("broker down")})

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
	assert.Contains(t, err.Error(), "broker down")

	_, failed, _ := p.Metrics()
	assert.Equal(t, int64(1), failed)
}

func TestPublishEvent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	payload := map[string]string{"diagnosis_id": "abc"}
	require.NoError(t, p.PublishEvent(context.Background(), TopicDiagnosisCreated, "12345678", "triage.diagnosis.created", payload))
	require.Len(t, w.written, 1)

	m := w.written[0]
	assert.Equal(t, "12345678", string(m.Key))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	assert.Equal(t, "triage.diagnosis.created", env.EventType)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.NotEmpty(t, env.EventID)

	var got map[string]string
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, payload, got)
}

func TestProducer_Close(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closeCall)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.Equal(t, ErrProducerClosed, err)
}
