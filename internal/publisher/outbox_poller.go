package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/repo"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 50
)

// OutboxSource drains order events persisted in the same transaction as the
// status change that produced them.
type OutboxSource interface {
	UnprocessedEvents(ctx context.Context, limit int) ([]*repo.OutboxEvent, error)
	MarkEventProcessed(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays outbox rows to the order-events topic. Events are
// marked processed only after the write succeeds, so delivery is
// at-least-once and consumers must dedupe on aggregate id plus event type.
type OutboxPoller struct {
	Source   OutboxSource
	Writer   MessageWriter
	Interval time.Duration
	Batch    int
}

func NewOutboxPoller(source OutboxSource, writer MessageWriter) *OutboxPoller {
	return &OutboxPoller{
		Source:   source,
		Writer:   writer,
		Interval: defaultInterval,
		Batch:    defaultBatch,
	}
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Run polls until the context is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Drain(ctx); err != nil {
				logging.Log(logging.Event{Component: "outbox", Step: "drain", Status: "error", Error: err.Error()})
			}
		}
	}
}

// Drain relays one batch of unprocessed events.
func (p *OutboxPoller) Drain(ctx context.Context) error {
	events, err := p.Source.UnprocessedEvents(ctx, p.Batch)
	if err != nil {
		return err
	}
	for _, e := range events {
		msg := kafka.Message{
			Key:   []byte(e.AggregateID),
			Value: e.Payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.EventType)},
			},
		}
		if err := p.Writer.WriteMessages(ctx, msg); err != nil {
			return err
		}
		if err := p.Source.MarkEventProcessed(ctx, e.ID); err != nil {
			return err
		}
		logging.Log(logging.Event{Component: "outbox", Step: "publish", Status: "sent", Message: e.EventType})
	}
	return nil
}
