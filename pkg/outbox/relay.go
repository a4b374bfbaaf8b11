// Package outbox relays events written by checkout transactions to Kafka.
//
// Delivery is at-least-once: an event is marked sent only after the broker
// acknowledged it, so a crash between the two replays it. Consumers dedupe
// on event_id.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/store"
)

// ErrDisabled is returned by NewKafkaPublisher when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

// Publisher delivers one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, e models.OutboxEvent) error
}

// Observer counts relay results; "sent" or "failed".
type Observer interface {
	ObserveRelay(result string)
}

// KafkaPublisher writes events with kafka-go. The message key is the event
// key, so one customer's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, ErrDisabled
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e models.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: e.Topic,
		Key:   []byte(e.Key),
		Value: e.Payload,
		Time:  e.CreatedAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Relay polls the outbox and publishes pending events in id order.
type Relay struct {
	q         store.OutboxQuerier
	pub       Publisher
	log       *slog.Logger
	obs       Observer
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

func NewRelay(q store.OutboxQuerier, pub Publisher, log *slog.Logger, obs Observer) *Relay {
	return &Relay{
		q:         q,
		pub:       pub,
		log:       log,
		obs:       obs,
		batchSize: 100,
		interval:  time.Second,
		now:       time.Now,
	}
}

// WithPolling overrides the batch size and idle interval.
func (r *Relay) WithPolling(batchSize int, interval time.Duration) *Relay {
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if interval > 0 {
		r.interval = interval
	}
	return r
}

// RunOnce publishes up to one batch and returns how many events were sent.
// It stops at the first publish failure so later events are not sent ahead
// of an earlier one.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.q.FetchPendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range events {
		if err := r.pub.Publish(ctx, e); err != nil {
			r.observe("failed")
			r.log.Warn("failed to publish outbox event", "event_id", e.EventID, "topic", e.Topic, "error", err)
			return sent, err
		}
		if err := r.q.MarkOutboxSent(ctx, e.ID, r.now()); err != nil {
			return sent, err
		}
		r.observe("sent")
		sent++
	}
	if sent > 0 {
		r.log.Info("outbox events relayed", "count", sent)
	}
	return sent, nil
}

// Run relays until ctx is cancelled. A full batch is followed immediately
// by the next one; otherwise the relay sleeps for the interval.
func (r *Relay) Run(ctx context.Context) error {
	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Error("outbox relay pass failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.interval):
		}
	}
}

func (r *Relay) observe(result string) {
	if r.obs != nil {
		r.obs.ObserveRelay(result)
	}
}
