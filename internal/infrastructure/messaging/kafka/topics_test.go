package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

type mockKafkaConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions []kafka.Partition
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(...string) ([]kafka.Partition, error) {
	return m.partitions, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func newTestTopicManager(conn ConnInterface) *TopicManager {
	return &TopicManager{conn: conn, logger: logging.NewNopLogger()}
}

func TestTriageTopics(t *testing.T) {
	topics := TriageTopics(config.KafkaConfig{
		RequestTopic:    TopicPredictionRequested,
		EventTopic:      TopicDiagnosisCreated,
		DeadLetterTopic: TopicPredictionDLQ,
	})
	require.Len(t, topics, 3)
	assert.Equal(t, "triage.prediction.requested", topics[0].Name)
	assert.Equal(t, "triage.diagnosis.created", topics[1].Name)
	assert.Equal(t, "triage.prediction.dlq", topics[2].Name)
}

func TestEnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := newTestTopicManager(conn)

	err := m.EnsureTopics(context.Background(), []TopicConfig{
		{Name: "a", NumPartitions: 3, ReplicationFactor: 1, RetentionMs: 1000},
		{Name: "b", NumPartitions: 1, ReplicationFactor: 1},
	})
	require.NoError(t, err)
	require.Len(t, conn.created, 2)
	assert.Equal(t, []kafka.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: "1000"}}, conn.created[0].ConfigEntries)
	assert.Empty(t, conn.created[1].ConfigEntries)
}

func TestCreateTopic_AlreadyExists(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{createErr: kafka.TopicAlreadyExists})
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "a", NumPartitions: 1, ReplicationFactor: 1}))
}

func TestCreateTopic_Failure(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{createErr: stderrors.New("not controller")})
	err := m.CreateTopic(context.Background(), TopicConfig{Name: "a", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))

	err = m.CreateTopic(context.Background(), TopicConfig{Name: "a"})
	assert.True(t, errors.IsValidation(err))
}

func TestTopicExists(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{partitions: []kafka.Partition{{Topic: "a"}}})
	ok, err := m.TopicExists(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMessageToEventEnvelope(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, errors.IsValidation(err))

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{not json")})
	assert.True(t, errors.IsValidation(err))

	env, err := NewEventEnvelope("x.y", map[string]int{"n": 1})
	require.NoError(t, err)
	pm, err := env.ToMessage("t")
	require.NoError(t, err)
	assert.Equal(t, "x.y", pm.Headers[HeaderEventType])

	got, err := MessageToEventEnvelope(&Message{Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)

	var payload map[string]int
	require.NoError(t, got.DecodePayload(&payload))
	assert.Equal(t, 1, payload["n"])

	empty := &EventEnvelope{}
	assert.True(t, errors.IsValidation(empty.DecodePayload(&payload)))
}
