package service

import "order-admin/internal/models"

// allowedTransitions is the order status transition table. Every edge is
// currently permitted, including re-opening a delivered order; the table
// exists so individual edges can be restricted later without touching
// callers.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusNew:          {models.StatusProformaSent, models.StatusPaid, models.StatusInvoiceSent, models.StatusDelivered, models.StatusCancelled},
	models.StatusProformaSent: {models.StatusNew, models.StatusPaid, models.StatusInvoiceSent, models.StatusDelivered, models.StatusCancelled},
	models.StatusPaid:         {models.StatusNew, models.StatusProformaSent, models.StatusInvoiceSent, models.StatusDelivered, models.StatusCancelled},
	models.StatusInvoiceSent:  {models.StatusNew, models.StatusProformaSent, models.StatusPaid, models.StatusDelivered, models.StatusCancelled},
	models.StatusDelivered:    {models.StatusNew, models.StatusProformaSent, models.StatusPaid, models.StatusInvoiceSent, models.StatusCancelled},
	models.StatusCancelled:    {models.StatusNew, models.StatusProformaSent, models.StatusPaid, models.StatusInvoiceSent, models.StatusDelivered},
}

// CanTransition reports whether an order may move from one status to
// another. Re-saving the same status is always allowed and is not a
// transition.
func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitioned reports whether a save actually changed the status, as
// opposed to a no-op re-save.
func transitioned(prev, next models.OrderStatus) bool {
	return prev != next
}

// entersDelivered reports whether a save moves the order into the
// delivered status from any other status. Only such a save deducts
// stock; re-saving a delivered order never deducts again.
func entersDelivered(prev, next models.OrderStatus) bool {
	return next == models.StatusDelivered && prev != models.StatusDelivered
}
