// Package kafka publishes ledger events for downstream fraud analytics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"login-risk-engine/internal/domain/risk"
	"login-risk-engine/internal/pkg/metrics"
)

// Event types
const (
	EventDecided = "risk.decided"
	EventOutcome = "risk.outcome"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	// Logger receives delivery failures from the async writer
	Logger *zap.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the message body. Records are keyed by identity so one identity's
// events stay ordered within a partition.
type Event struct {
	Type           string                 `json:"type"`
	AttemptID      string                 `json:"attemptId"`
	IdentityKey    string                 `json:"identityKey"`
	Sequence       int64                  `json:"sequence"`
	Decision       risk.Decision          `json:"decision"`
	CompositeScore float64                `json:"compositeScore"`
	OverrideReason string                 `json:"overrideReason,omitempty"`
	FinalOutcome   risk.Outcome           `json:"finalOutcome"`
	Signals        map[string]risk.Signal `json:"signals,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

// Publisher writes decision and outcome events
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher creates a publisher backed by an async kafka.Writer. Publish
// calls only enqueue; delivery failures surface through onCompletion.
func NewPublisher(cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             onCompletion(cfg.Topic, logger),
	}
	return &Publisher{writer: w, topic: cfg.Topic}
}

// PublishDecision emits risk.decided with the full signal breakdown
func (p *Publisher) PublishDecision(ctx context.Context, record *risk.AttemptRecord) error {
	ev := eventFor(EventDecided, record)
	ev.Signals = record.Assessment.Signals
	ev.OccurredAt = record.RecordedAt
	return p.publish(ctx, record.IdentityKey, ev)
}

// PublishOutcome emits risk.outcome once an OTP challenge resolves
func (p *Publisher) PublishOutcome(ctx context.Context, record *risk.AttemptRecord) error {
	ev := eventFor(EventOutcome, record)
	ev.OccurredAt = record.RecordedAt
	if record.OutcomeAt != nil {
		ev.OccurredAt = *record.OutcomeAt
	}
	return p.publish(ctx, record.IdentityKey, ev)
}

// Close flushes pending messages
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// onCompletion counts and logs batches the async writer could not deliver
func onCompletion(topic string, logger *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		metrics.SideEffectFailuresTotal.WithLabelValues("publish_async").Add(float64(len(msgs)))
		logger.Warn("failed to deliver risk events",
			zap.String("topic", topic),
			zap.Int("messages", len(msgs)),
			zap.Error(err),
		)
	}
}

func (p *Publisher) publish(ctx context.Context, key string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", ev.Type, p.topic, err)
	}
	return nil
}

func eventFor(eventType string, record *risk.AttemptRecord) Event {
	ev := Event{
		Type:         eventType,
		AttemptID:    record.AttemptID,
		IdentityKey:  record.IdentityKey,
		Sequence:     record.Sequence,
		FinalOutcome: record.FinalOutcome,
	}
	if a := record.Assessment; a != nil {
		ev.Decision = a.Decision
		ev.CompositeScore = a.CompositeScore
		ev.OverrideReason = a.OverrideReason
	}
	return ev
}
