// Package events publishes committed asset transitions for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"solarcycle.GO/core/logger"
	"solarcycle.GO/model/entity"
)

type LifecycleEvent struct {
	AssetID    uint               `json:"assetId"`
	ExternalID string             `json:"externalId"`
	From       entity.AssetStatus `json:"from,omitempty"`
	To         entity.AssetStatus `json:"to"`
	At         time.Time          `json:"at"`
}

// Publisher delivers lifecycle events. Failures never roll back a transition.
type Publisher interface {
	Publish(ctx context.Context, e LifecycleEvent) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LifecycleEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

// KafkaPublisher writes events keyed by external id so one asset's events
// land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e LifecycleEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.ExternalID), Value: payload}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// New returns a Kafka publisher when brokers are configured, else a no-op.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 || brokers[0] == "" {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}

// Emit publishes in the background and only logs failures.
func Emit(p Publisher, e LifecycleEvent) {
	if p == nil {
		return
	}
	if _, nop := p.(NopPublisher); nop {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Publish(ctx, e); err != nil {
			logger.Warn("publish lifecycle event",
				zap.String("external_id", e.ExternalID), zap.String("to", string(e.To)), zap.Error(err))
		}
	}()
}

// Recorder keeps events in memory. Used by tests.
type Recorder struct {
	ch chan LifecycleEvent
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan LifecycleEvent, size)}
}

func (r *Recorder) Publish(_ context.Context, e LifecycleEvent) error {
	select {
	case r.ch <- e:
	default:
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() <-chan LifecycleEvent { return r.ch }
