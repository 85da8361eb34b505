package service

import (
	"errors"
	"fmt"

	"order-admin/internal/models"
)

// ErrOrderBusy means another request holds the order's lock.
var ErrOrderBusy = errors.New("order is being modified by another request")

// ErrDeliveryFailed marks document mail failures. Order status is never
// changed when a send fails.
var ErrDeliveryFailed = errors.New("document delivery failed")

// InvoiceNumberTakenError reports a manual invoice number collision,
// naming the order that already holds the number.
type InvoiceNumberTakenError struct {
	Number        int
	HolderOrderID int64
}

func (e *InvoiceNumberTakenError) Error() string {
	return fmt.Sprintf("invoice number %d already taken by order %d", e.Number, e.HolderOrderID)
}

// InvalidTransitionError reports a status change the transition table
// forbids.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order status cannot move from %s to %s", e.From, e.To)
}

// ValidationError carries field-level validation messages for a save
// that was rejected before any persistence.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}
