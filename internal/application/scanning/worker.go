package scanning

import (
	"context"
	"time"

	"github.com/turtacn/deckscan/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deckscan/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deckscan/pkg/errors"
)

// WorkerSource identifies scan results published by the worker.
const WorkerSource = "deckscan-worker"

// Worker consumes scan requests from Kafka and publishes their results.
type Worker struct {
	service     Service
	publisher   kafka.Publisher
	resultTopic string
	metrics     *prometheus.ScanMetrics
	logger      logging.Logger
}

// NewWorker creates a Worker that answers on resultTopic unless a request
// names its own reply topic.
func NewWorker(service Service, publisher kafka.Publisher, resultTopic string, metrics *prometheus.ScanMetrics, logger logging.Logger) (*Worker, error) {
	if service == nil {
		return nil, errors.ConfigurationError("scan service is required")
	}
	if publisher == nil {
		return nil, errors.ConfigurationError("result publisher is required")
	}
	if resultTopic == "" {
		resultTopic = kafka.TopicScanCompleted
	}
	return &Worker{
		service:     service,
		publisher:   publisher,
		resultTopic: resultTopic,
		metrics:     metrics,
		logger:      logging.OrNop(logger).Named("worker"),
	}, nil
}

// Handle is a kafka.MessageHandler. Requests that can never succeed, such as
// malformed envelopes or bad fragments, are answered with an error result
// and acknowledged. Anything else is returned so the consumer retries and
// eventually dead-letters the message.
func (w *Worker) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	err := w.handle(ctx, msg)
	prometheus.RecordMessage(w.metrics, msg.Topic, err == nil, time.Since(start))
	return err
}

func (w *Worker) handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		w.logger.Warn("dropping undecodable message",
			logging.String(logging.FieldTopic, msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err))
		return nil
	}
	if env.EventType != "" && env.EventType != kafka.EventScanRequested {
		w.logger.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}

	var payload kafka.ScanRequestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		w.logger.Warn("dropping malformed scan request", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}
	if payload.ScanID == "" {
		payload.ScanID = env.EventID
	}

	req := &ScanRequest{
		ID:        payload.ScanID,
		Format:    payload.Format,
		Fragments: payload.Fragments,
		Payload:   payload.Raw,
		Source:    SourceKafka,
	}
	result := kafka.ScanCompletedPayload{ScanID: payload.ScanID}

	res, err := w.service.Scan(ctx, req)
	switch {
	case err == nil:
		result.Deck = res.Deck
		result.Text = res.Deck.String()
		result.Cards = res.Cards
		result.DurationMS = res.DurationMS
		result.CompletedAt = res.CompletedAt
	case errors.IsInputError(err):
		result.Error = err.Error()
		result.CompletedAt = time.Now().UTC()
	default:
		return err
	}

	topic := payload.ReplyTo
	if topic == "" {
		topic = w.resultTopic
	}
	return w.publish(ctx, topic, env.TraceID, result)
}

func (w *Worker) publish(ctx context.Context, topic, traceID string, result kafka.ScanCompletedPayload) error {
	out, err := kafka.NewEventEnvelope(kafka.EventScanCompleted, WorkerSource, result)
	if err != nil {
		return err
	}
	out.TraceID = traceID
	msg, err := out.ToMessage(topic, result.ScanID)
	if err != nil {
		return err
	}
	if err := w.publisher.Publish(ctx, msg); err != nil {
		return err
	}
	w.logger.Debug("scan result published",
		logging.String(logging.FieldScanID, result.ScanID),
		logging.String(logging.FieldTopic, topic))
	return nil
}
