package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"vaultcore/internal/core"
	"vaultcore/internal/observability"
)

// Outbound stream layout. Subjects follow vault.events.{event_type}.
const (
	EventStream   = "VAULT_EVENTS"
	EventSubjects = "vault.events.>"
)

// OutboundPublisher publishes committed transitions to NATS for downstream
// consumers. Events are published after the core emitted them; a publish
// failure is non-fatal because consumers can rebuild from the event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// PublishableEvent is the outbound wire form of one transition.
type PublishableEvent struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	Key       string      `json:"key"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.Output, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
		log:       observability.NewLogger("publisher"),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publish(ctx, out); err != nil {
				op.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
				if op.metrics != nil {
					op.metrics.PublishDrops.Inc()
				}
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.Output) error {
	evt := PublishableEvent{
		Sequence:  out.Envelope.Sequence,
		EventType: out.Envelope.EventType.String(),
		Key:       out.Envelope.Key,
		Timestamp: out.Envelope.Timestamp,
		Payload:   out.Payload,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("vault.events.%s", evt.EventType)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      EventStream,
		Subjects:  []string{EventSubjects},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
