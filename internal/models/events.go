package models

import "time"

// Event types published to the order events topic.
const (
	EventTypeOrderStatusChanged     = "ORDER_STATUS_CHANGED"
	EventTypeOrderDelivered         = "ORDER_DELIVERED"
	EventTypeInvoiceNumberAllocated = "INVOICE_NUMBER_ALLOCATED"
	EventTypeDocumentSent           = "DOCUMENT_SENT"
)

// BaseEvent contains fields common to all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData is the event payload form of an order line.
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderStatusChangedEvent is published on every genuine status transition.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    int64       `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
}

// OrderDeliveredEvent is published when an order enters the delivered
// status. Carries the ledger so consumers can maintain product counters.
type OrderDeliveredEvent struct {
	BaseEvent
	OrderID int64           `json:"order_id"`
	Items   []OrderItemData `json:"items"`
}

// InvoiceNumberAllocatedEvent is published when the numbering authority
// hands out a new invoice number.
type InvoiceNumberAllocatedEvent struct {
	BaseEvent
	OrderID       int64 `json:"order_id"`
	Year          int   `json:"year"`
	InvoiceNumber int   `json:"invoice_number"`
}

// DocumentSentEvent is published after a proforma or invoice mail was
// confirmed delivered to the SMTP relay.
type DocumentSentEvent struct {
	BaseEvent
	OrderID   int64        `json:"order_id"`
	Kind      DocumentKind `json:"kind"`
	Recipient string       `json:"recipient"`
}
