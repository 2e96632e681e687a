package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	awspkg "github.com/NewtonMutugi/ict-innovations-africa-backend/pkg/aws"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers payment events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

// SNSPublisher sends events to an SNS topic.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"event_type": event.Type,
		"reference":  event.Reference,
	}
	if err := p.client.Publish(ctx, p.topicArn, data, attrs); err != nil {
		return fmt.Errorf("sns publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *SNSPublisher) Close() error { return nil }

// messageWriter is the part of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends events to a Kafka topic keyed by reference.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.Type, err)
	}
	p.logger.Debug("Sent payment event", zap.String("type", event.Type), zap.String("reference", event.Reference))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, models.PaymentEvent) error { return nil }
func (Noop) Close() error                                       { return nil }
