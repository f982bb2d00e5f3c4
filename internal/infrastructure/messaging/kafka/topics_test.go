package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/internal/testutil"
	"github.com/turtacn/deckscan/pkg/types/scan"
)

type mockKafkaConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions map[string][]kafka.Partition
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		out = append(out, m.partitions[t]...)
	}
	return out, nil
}

func (m *mockKafkaConn) Close() error { return nil }

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics(TopicScanRequested, TopicScanCompleted, TopicDeadLetterScan)
	require.Len(t, topics, 3)
	assert.Equal(t, TopicDeadLetterScan, topics[2].Name)
	assert.Equal(t, int64(30*24*3600*1000), topics[2].RetentionMs)
}

func TestEnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := newTopicManagerWithConn(conn, testutil.NewMockLogger())

	err := m.EnsureTopics(context.Background(), DefaultTopics("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, conn.created, 3)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
}

func TestCreateTopic_ExistingIsNotAnError(t *testing.T) {
	conn := &mockKafkaConn{
		createErr:  stderrors.New("topic already exists"),
		partitions: map[string][]kafka.Partition{"a": {{Topic: "a"}}},
	}
	m := newTopicManagerWithConn(conn, nil)

	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "a", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "b", NumPartitions: 1, ReplicationFactor: 1}))
	assert.Error(t, m.CreateTopic(context.Background(), TopicConfig{Name: "b"}))
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	payload := ScanRequestedPayload{
		ScanID:    "scan-1",
		Fragments: []scan.Fragment{{Box: scan.BoundingBox{1, 2}, Text: "Island"}},
	}
	env, err := NewEventEnvelope(EventScanRequested, "test", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, CurrentSchemaVersion, env.SchemaVersion)

	pm, err := env.ToMessage(TopicScanRequested, payload.ScanID)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", string(pm.Key))
	assert.Equal(t, EventScanRequested, pm.Headers["event_type"])

	decoded, err := MessageToEventEnvelope(&Message{Topic: pm.Topic, Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)

	var got ScanRequestedPayload
	require.NoError(t, decoded.DecodePayload(&got))
	assert.Equal(t, payload, got)
}

func TestEventEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.Error(t, err)

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.Error(t, err)

	var p ScanCompletedPayload
	assert.Error(t, (&EventEnvelope{}).DecodePayload(&p))
}
