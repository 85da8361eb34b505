package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"order-admin/internal/models"
	"order-admin/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentRenderer turns an order snapshot into a PDF artifact and
// returns its path.
type DocumentRenderer interface {
	Render(order *models.Order, items []models.OrderItem, kind models.DocumentKind) (string, error)
}

// Mailer delivers a document to a recipient as an attachment.
type Mailer interface {
	Send(to, name, subject, attachmentPath string) error
}

// DocumentResult describes the outcome of a prepareDocument call.
type DocumentResult struct {
	Kind          models.DocumentKind   `json:"kind"`
	Action        models.DocumentAction `json:"action"`
	ArtifactPath  string                `json:"artifact_path"`
	InvoiceNumber int                   `json:"invoice_number,omitempty"`
	Status        models.OrderStatus    `json:"status"`
	Sent          bool                  `json:"sent"`
}

// PrepareDocument renders a proforma or invoice for an order and
// previews, prints or sends it.
//
// Invoice numbering: send and print allocate a number when the order has
// none yet; preview never allocates. Status only advances after the mail
// was accepted for delivery — a failed send leaves the order untouched.
func (s *OrderService) PrepareDocument(ctx context.Context, orderID int64, kind models.DocumentKind, action models.DocumentAction) (*DocumentResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PrepareDocument")
	defer span.End()

	if kind != models.DocumentProforma && kind != models.DocumentInvoice {
		return nil, &ValidationError{Fields: map[string]string{"kind": "must be proforma or invoice"}}
	}
	switch action {
	case models.ActionPreview, models.ActionSend, models.ActionPrint:
	default:
		return nil, &ValidationError{Fields: map[string]string{"action": "must be preview, send or print"}}
	}

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	result := &DocumentResult{Kind: kind, Action: action, Status: order.OrderStatusID}

	if kind == models.DocumentInvoice && action != models.ActionPreview {
		freshlyAllocated := !order.InvoiceNumber.Valid

		number, err := s.store.AllocateInvoiceNumberTx(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
		}
		order.InvoiceNumber = sql.NullInt64{Int64: int64(number), Valid: true}
		result.InvoiceNumber = number

		if freshlyAllocated {
			util.InvoiceNumbersAllocatedTotal.Inc()
			s.publishInvoiceNumberAllocated(ctx, order, number)
		}
	}

	path, err := s.renderer.Render(order, items, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s for order %d: %w", kind, order.ID, err)
	}
	util.DocumentsRenderedTotal.WithLabelValues(string(kind)).Inc()
	result.ArtifactPath = path

	if action != models.ActionSend {
		return result, nil
	}

	subject := documentSubject(order, kind)
	if err := s.mailer.Send(order.BillingEmail, order.BillingName, subject, path); err != nil {
		util.DocumentsFailedTotal.WithLabelValues(string(kind)).Inc()
		s.logger.Error("Document send failed",
			zap.Int64("order_id", order.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	util.DocumentsSentTotal.WithLabelValues(string(kind)).Inc()
	result.Sent = true

	target := models.StatusProformaSent
	if kind == models.DocumentInvoice {
		target = models.StatusInvoiceSent
	}

	prev := order.OrderStatusID
	if transitioned(prev, target) {
		if err := s.store.SetOrderStatus(ctx, order.ID, target); err != nil {
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
		order.OrderStatusID = target
		util.OrderTransitionsTotal.WithLabelValues(prev.String(), target.String()).Inc()
		s.publishStatusChanged(ctx, order.ID, prev, target)
	}
	result.Status = order.OrderStatusID

	s.publishDocumentSent(ctx, order, kind)
	s.logger.Info("Document sent",
		zap.Int64("order_id", order.ID),
		zap.String("kind", string(kind)),
		zap.String("recipient", order.BillingEmail))

	return result, nil
}

// documentSubject builds the mail subject line for a document.
func documentSubject(order *models.Order, kind models.DocumentKind) string {
	year := time.Now().Year()
	if kind == models.DocumentProforma {
		return fmt.Sprintf("Proforma invoice No: T-%d-%d", order.ID, year)
	}
	return fmt.Sprintf("Invoice No: %d %d", order.InvoiceNumber.Int64, year)
}

func (s *OrderService) publishInvoiceNumberAllocated(ctx context.Context, order *models.Order, number int) {
	event := &models.InvoiceNumberAllocatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeInvoiceNumberAllocated),
		OrderID:       order.ID,
		Year:          order.InvoiceYear(),
		InvoiceNumber: number,
	}
	if err := s.events.PublishInvoiceNumberAllocated(ctx, event); err != nil {
		s.logger.Error("Failed to publish InvoiceNumberAllocated event", zap.Error(err))
	}
}

func (s *OrderService) publishDocumentSent(ctx context.Context, order *models.Order, kind models.DocumentKind) {
	event := &models.DocumentSentEvent{
		BaseEvent: newBaseEvent(models.EventTypeDocumentSent),
		OrderID:   order.ID,
		Kind:      kind,
		Recipient: order.BillingEmail,
	}
	if err := s.events.PublishDocumentSent(ctx, event); err != nil {
		s.logger.Error("Failed to publish DocumentSent event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
