package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/logger"
	awspkg "github.com/NewtonMutugi/ict-innovations-africa-backend/pkg/aws"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Poller is the queue side of the consumer, satisfied by *aws.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// CallbackConsumer feeds queued gateway notifications into Callback.
type CallbackConsumer struct {
	poller Poller
	svc    Callbacker
	logger *zap.Logger
}

func NewCallbackConsumer(poller Poller, svc Callbacker, logger *zap.Logger) *CallbackConsumer {
	return &CallbackConsumer{poller: poller, svc: svc, logger: logger}
}

// callbackMessage accepts {"reference": ...} as well as the gateway's own
// webhook shape {"event": ..., "data": {"reference": ...}}.
type callbackMessage struct {
	Reference string `json:"reference"`
	Event     string `json:"event"`
	Data      struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Start blocks polling until ctx is cancelled.
func (c *CallbackConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting CallbackConsumer (SQS)")
	return c.poller.StartPolling(ctx, c.Handle)
}

// Handle processes one message body. A nil return deletes the message; an
// error leaves it on the queue for redelivery.
func (c *CallbackConsumer) Handle(ctx context.Context, body string) error {
	ctx = logger.WithContext(ctx, uuid.NewString())
	log := logger.For(ctx, c.logger)

	reference, err := referenceFrom(body)
	if err != nil {
		log.Warn("Dropping malformed callback message", zap.Error(err))
		return nil
	}

	res, err := c.svc.Callback(ctx, reference)
	if err != nil {
		appErr := apperrors.From(err)
		if appErr.Retryable() {
			log.Warn("Callback failed, leaving message for redelivery",
				zap.String("reference", reference),
				zap.String("kind", string(appErr.Kind)),
				zap.Error(err),
			)
			return err
		}
		log.Info("Callback rejected, dropping message",
			zap.String("reference", reference),
			zap.String("kind", string(appErr.Kind)),
		)
		return nil
	}

	log.Info("Queued callback processed",
		zap.String("reference", reference),
		zap.String("status", res.Record.Status),
		zap.Bool("changed", res.Changed),
	)
	return nil
}

func referenceFrom(body string) (string, error) {
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Type == "Notification" && env.Message != "" {
		body = env.Message
	}

	var msg callbackMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return "", err
	}
	ref := strings.TrimSpace(msg.Reference)
	if ref == "" {
		ref = strings.TrimSpace(msg.Data.Reference)
	}
	if ref == "" {
		return "", errors.New("message has no reference")
	}
	return ref, nil
}
