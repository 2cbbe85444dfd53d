package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedMessage marks a message that can never be handled. The consumer
// commits past it instead of retrying.
var ErrMalformedMessage = errors.New("malformed message")

// Publisher is anything that can put a keyed event on a topic
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCheckoutEvent publishes a checkout outcome keyed by session, so one
// visitor's events stay ordered on a single partition
func (ep *EventPublisher) PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) error {
	key := fmt.Sprintf("session-%s", event.SessionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onProductRestocked func(context.Context, *models.ProductRestockedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProductRestocked registers a handler for PRODUCT_RESTOCKED events
func (eh *EventHandler) OnProductRestocked(handler func(context.Context, *models.ProductRestockedEvent) error) {
	eh.onProductRestocked = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrMalformedMessage, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductRestocked:
		if eh.onProductRestocked != nil {
			var event models.ProductRestockedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: failed to unmarshal ProductRestocked event: %v", ErrMalformedMessage, err)
			}
			return eh.onProductRestocked(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
