package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the event topic
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// TrustWorker recomputes trust scores from order events
type TrustWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewTrustWorker creates a new trust worker
func NewTrustWorker(source MessageSource, trust *service.TrustService) *TrustWorker {
	return &TrustWorker{
		source:       source,
		eventHandler: NewTrustHandler(trust),
		logger:       util.Named("trust-worker"),
	}
}

// NewTrustHandler routes order and item events to trust
func NewTrustHandler(trust *service.TrustService) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(trust.HandleOrderPlaced)
	eventHandler.OnItemEvent(trust.HandleItemEvent)
	return eventHandler
}

// Start blocks consuming events until ctx is cancelled
func (w *TrustWorker) Start(ctx context.Context) error {
	w.logger.Info("starting trust worker")
	return w.source.StartConsuming(ctx, w.handle)
}

func (w *TrustWorker) handle(ctx context.Context, msg kafka.Message) error {
	ctx, span := util.StartSpan(ctx, "TrustWorker.handle",
		attribute.String("messaging.kafka.message.key", string(msg.Key)),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer span.End()

	err := w.eventHandler.HandleMessage(ctx, msg)
	util.FailSpan(span, err)
	return err
}

// Stop stops the worker
func (w *TrustWorker) Stop() error {
	w.logger.Info("stopping trust worker")
	return w.source.Close()
}
