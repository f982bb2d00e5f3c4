package kafka

import (
	"context"
	"time"
)

// Message is a record read from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to be written.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A non-nil error triggers retries
// and, once they are exhausted, dead-lettering.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is the write side used by consumers and the scan worker.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}
