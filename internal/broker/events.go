package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"order-admin/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishStatusChanged publishes an OrderStatusChanged event
func (ep *EventPublisher) PublishStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderDelivered publishes an OrderDelivered event
func (ep *EventPublisher) PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishInvoiceNumberAllocated publishes an InvoiceNumberAllocated event
func (ep *EventPublisher) PublishInvoiceNumberAllocated(ctx context.Context, event *models.InvoiceNumberAllocatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishDocumentSent publishes a DocumentSent event
func (ep *EventPublisher) PublishDocumentSent(ctx context.Context, event *models.DocumentSentEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered handlers
type EventHandler struct {
	onOrderDelivered func(context.Context, *models.OrderDeliveredEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderDelivered registers a handler for OrderDelivered events
func (eh *EventHandler) OnOrderDelivered(handler func(context.Context, *models.OrderDeliveredEvent) error) {
	eh.onOrderDelivered = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderDelivered:
		if eh.onOrderDelivered != nil {
			var event models.OrderDeliveredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderDelivered event: %w", err)
			}
			return eh.onOrderDelivered(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
