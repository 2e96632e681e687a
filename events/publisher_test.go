package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSNS struct {
	topic string
	body  []byte
	attrs map[string]string
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, topicArn string, message []byte, attributes map[string]string) error {
	f.topic, f.body, f.attrs = topicArn, message, attributes
	return f.err
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() models.PaymentEvent {
	return models.PaymentEvent{
		EventID:   "evt-1",
		Type:      models.EventPaymentSuccess,
		Reference: "REF123",
		Email:     "jane@example.com",
		Status:    models.StatusSuccess,
		Amount:    decimal.NewFromInt(5000),
		Currency:  "KES",
		Timestamp: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestSNSPublisher_Publish(t *testing.T) {
	sns := &fakeSNS{}
	p := NewSNSPublisher(sns, "arn:aws:sns:eu-west-1:123:payments")

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:payments", sns.topic)
	assert.Equal(t, "payment_success", sns.attrs["event_type"])

	var got models.PaymentEvent
	require.NoError(t, json.Unmarshal(sns.body, &got))
	assert.Equal(t, "REF123", got.Reference)
}

func TestSNSPublisher_Error(t *testing.T) {
	p := NewSNSPublisher(&fakeSNS{err: errors.New("throttled")}, "arn")
	assert.ErrorContains(t, p.Publish(context.Background(), sampleEvent()), "throttled")
}

func TestKafkaPublisher_KeysByReference(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "REF123", string(w.msgs[0].Key))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
