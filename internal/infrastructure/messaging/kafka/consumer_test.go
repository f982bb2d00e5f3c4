package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deckscan/internal/testutil"
)

// mockKafkaReader hands out queued messages and then blocks until ctx ends.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) published() []*ProducerMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*ProducerMessage(nil), p.msgs...)
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "test-group",
		Topics:  []string{TopicScanRequested},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicDeadLetterScan,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	for _, mutate := range []func(*ConsumerConfig){
		func(c *ConsumerConfig) { c.Brokers = nil },
		func(c *ConsumerConfig) { c.GroupID = "" },
		func(c *ConsumerConfig) { c.Topics = nil },
		func(c *ConsumerConfig) { c.StartOffset = "middle" },
		func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 },
	} {
		cfg := newTestConsumerConfig()
		mutate(&cfg)
		assert.Error(t, ValidateConsumerConfig(cfg))
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), nil, testutil.NewMockLogger())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: TopicScanRequested, Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: "unknown", Offset: 2, Value: []byte("b")},
	}}
	c := newConsumerWithReader(reader, newTestConsumerConfig(), nil, testutil.NewMockLogger())

	var got atomic.Value
	c.Subscribe(TopicScanRequested, func(_ context.Context, msg *Message) error {
		got.Store(msg)
		return nil
	})
	require.NoError(t, c.Start(context.Background()))

	assert.Eventually(t, func() bool { return reader.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	msg := got.Load().(*Message)
	assert.Equal(t, "a", string(msg.Value))
	assert.Equal(t, "x", msg.Headers["event_type"])
	assert.True(t, reader.closed)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Consumed)
	assert.Equal(t, int64(1), stats.Processed)
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), nil, testutil.NewMockLogger())

	calls := 0
	err := c.processMessage(context.Background(), &Message{Topic: TopicScanRequested}, func(context.Context, *Message) error {
		calls++
		if calls < 2 {
			return stderrors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), c.Stats().Retried)
	assert.Equal(t, int64(1), c.Stats().Processed)
}

func TestProcessMessage_RetryExhaustedGoesToDeadLetter(t *testing.T) {
	dlq := &recordingPublisher{}
	logger := testutil.NewMockLogger()
	c := newConsumerWithReader(&mockKafkaReader{}, newTestConsumerConfig(), dlq, logger)

	calls := 0
	msg := &Message{Topic: TopicScanRequested, Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"trace_id": "t1"}}
	err := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		calls++
		return stderrors.New("permanent")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	out := dlq.published()
	require.Len(t, out, 1)
	assert.Equal(t, TopicDeadLetterScan, out[0].Topic)
	assert.Equal(t, TopicScanRequested, out[0].Headers[HeaderOriginalTopic])
	assert.Equal(t, "permanent", out[0].Headers[HeaderErrorMessage])
	assert.Equal(t, "3", out[0].Headers[HeaderAttempts])
	assert.Equal(t, "t1", out[0].Headers["trace_id"])

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.DeadLettered)
	assert.True(t, logger.HasMessage("error", "message processing failed after retries"))
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	cfg.RetryConfig.MaxRetryBackoff = time.Hour
	c := newConsumerWithReader(&mockKafkaReader{}, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &Message{}, func(context.Context, *Message) error {
		return stderrors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
