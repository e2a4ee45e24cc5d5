package events

import (
	"context"

	"github.com/google/uuid"

	"orpheus/internal/adapters/kafka"
	"orpheus/internal/metrics"
	"orpheus/pkg/logger"
)

const source = "orpheus"

// Publisher is the event sink the gateway publishes through. Faked in
// tests; backed by Kafka in production.
type Publisher interface {
	PublishCallStarted(ctx context.Context, callID, callerID uuid.UUID, payload CallStarted) error
	PublishCallCompleted(ctx context.Context, callID, callerID uuid.UUID, payload CallCompleted) error
	PublishCallFailed(ctx context.Context, callID, callerID uuid.UUID, payload CallFailed) error
	PublishToolExecuted(ctx context.Context, callID, callerID uuid.UUID, payload ToolExecuted) error
}

// KafkaPublisher publishes call lifecycle events to Kafka. Events are
// keyed by call ID so one call's events stay ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewKafkaPublisher creates a new event publisher
func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log,
	}
}

// PublishCallStarted publishes a call.started event
func (p *KafkaPublisher) PublishCallStarted(ctx context.Context, callID, callerID uuid.UUID, payload CallStarted) error {
	return p.publish(ctx, kafka.TopicCallStarted, TypeCallStarted, callID, callerID, payload)
}

// PublishCallCompleted publishes a call.completed event
func (p *KafkaPublisher) PublishCallCompleted(ctx context.Context, callID, callerID uuid.UUID, payload CallCompleted) error {
	return p.publish(ctx, kafka.TopicCallCompleted, TypeCallCompleted, callID, callerID, payload)
}

// PublishCallFailed publishes a call.failed event
func (p *KafkaPublisher) PublishCallFailed(ctx context.Context, callID, callerID uuid.UUID, payload CallFailed) error {
	return p.publish(ctx, kafka.TopicCallFailed, TypeCallFailed, callID, callerID, payload)
}

// PublishToolExecuted publishes a tool.executed event
func (p *KafkaPublisher) PublishToolExecuted(ctx context.Context, callID, callerID uuid.UUID, payload ToolExecuted) error {
	return p.publish(ctx, kafka.TopicToolExecuted, TypeToolExecuted, callID, callerID, payload)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, eventType string, callID, callerID uuid.UUID, payload interface{}) error {
	env, err := NewEnvelope(eventType, source, callID, callerID, payload)
	if err != nil {
		return err
	}

	err = p.producer.Publish(ctx, topic, callID.String(), env)
	metrics.RecordKafkaMessage(topic, "produced", err)
	if err != nil {
		p.log.Errorw("Failed to publish event",
			"type", eventType,
			"call_id", callID,
			"error", err)
		return err
	}

	return nil
}
