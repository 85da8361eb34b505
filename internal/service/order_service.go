package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"order-admin/internal/models"
	"order-admin/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	orderLockTTL  = 10 * time.Second
	stockCacheTTL = 30 * time.Second
)

// OrderStore is the persistence surface the order service needs. The
// transactional methods own the racy windows: SaveOrderTx serializes
// concurrent saves of one order and couples the stock deduction to the
// order update, AllocateInvoiceNumberTx serializes allocation per year.
type OrderStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrders(ctx context.Context, limit, offset int) ([]models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error)
	GetOrderItemByProduct(ctx context.Context, orderID, productID int64) (*models.OrderItem, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	UpdateOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, id int64) error
	UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	MaxInvoiceNumber(ctx context.Context, year int) (int, error)
	FindInvoiceNumberHolder(ctx context.Context, year, number int, excludeOrderID int64) (int64, error)
	SaveOrderTx(ctx context.Context, order *models.Order, deductStock bool) error
	AllocateInvoiceNumberTx(ctx context.Context, orderID int64) (int, error)
	SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
}

// Locker serializes mutations of one order across concurrent requests.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// StockCache caches the rendered stock overview.
type StockCache interface {
	CacheStockOverview(ctx context.Context, payload []byte, ttl time.Duration) error
	GetStockOverview(ctx context.Context) ([]byte, error)
	InvalidateStockOverview(ctx context.Context) error
}

// Publisher publishes order lifecycle events.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error
	PublishInvoiceNumberAllocated(ctx context.Context, event *models.InvoiceNumberAllocatedEvent) error
	PublishDocumentSent(ctx context.Context, event *models.DocumentSentEvent) error
}

// OrderService is the façade the HTTP layer talks to. It owns totals
// recalculation, invoice numbering, status transitions and their side
// effects.
type OrderService struct {
	store    OrderStore
	locker   Locker
	cache    StockCache
	events   Publisher
	renderer DocumentRenderer
	mailer   Mailer
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	locker Locker,
	cache StockCache,
	events Publisher,
	renderer DocumentRenderer,
	mailer Mailer,
) *OrderService {
	return &OrderService{
		store:    store,
		locker:   locker,
		cache:    cache,
		events:   events,
		renderer: renderer,
		mailer:   mailer,
		logger:   util.GetLogger(),
	}
}

// UpdateOrderRequest carries an order save. Nil optional fields are
// persisted as null, matching the admin form semantics where an empty
// input clears the value.
type UpdateOrderRequest struct {
	OrderStatusID       models.OrderStatus `json:"order_status_id" binding:"required"`
	InvoiceNumber       *int               `json:"invoice_number"`
	ValidUntil          *time.Time         `json:"valid_until"`
	DateOfPurchase      *time.Time         `json:"date_of_purchase"`
	ShowShippingAddress bool               `json:"show_shipping_address"`
	BillingName         string             `json:"billing_name" binding:"required"`
	BillingEmail        string             `json:"billing_email" binding:"required,email"`
	BillingAddress      string             `json:"billing_address"`
	ShippingAddress     string             `json:"shipping_address"`
}

// GetOrder retrieves an order with its item ledger
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves orders newest first
func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 15
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.GetOrders(ctx, limit, offset)
}

// MaxInvoiceNumber returns the highest invoice number assigned in the
// given year. The order edit view shows it next to the manual entry
// field.
func (s *OrderService) MaxInvoiceNumber(ctx context.Context, year int) (int, error) {
	return s.store.MaxInvoiceNumber(ctx, year)
}

// SaveOrder validates and persists an order edit. Operation order is
// load-bearing: the previous status is captured before any mutation so
// a genuine transition into delivered can be told apart from a re-save,
// and stock deduction happens in the same transaction as the order
// update.
func (s *OrderService) SaveOrder(ctx context.Context, orderID int64, req *UpdateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SaveOrder")
	defer span.End()

	if err := validateOrderUpdate(req); err != nil {
		return nil, err
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
	prevStatus := order.OrderStatusID

	if req.InvoiceNumber != nil {
		holder, err := s.store.FindInvoiceNumberHolder(ctx, order.InvoiceYear(), *req.InvoiceNumber, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check invoice number: %w", err)
		}
		if holder != 0 {
			util.InvoiceNumberCollisionsTotal.Inc()
			return nil, &InvoiceNumberTakenError{Number: *req.InvoiceNumber, HolderOrderID: holder}
		}
	}

	if !CanTransition(prevStatus, req.OrderStatusID) {
		return nil, &InvalidTransitionError{From: prevStatus, To: req.OrderStatusID}
	}

	applyOrderUpdate(order, req)

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	order.TotalPrice = OrderTotal(items)

	deduct := entersDelivered(prevStatus, order.OrderStatusID)
	if err := s.store.SaveOrderTx(ctx, order, deduct); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	util.OrdersSavedTotal.Inc()
	s.logger.Info("Order saved",
		zap.Int64("order_id", order.ID),
		zap.String("status", order.OrderStatusID.String()),
		zap.String("total", order.TotalPrice.String()))

	if transitioned(prevStatus, order.OrderStatusID) {
		util.OrderTransitionsTotal.WithLabelValues(prevStatus.String(), order.OrderStatusID.String()).Inc()
		s.publishStatusChanged(ctx, order.ID, prevStatus, order.OrderStatusID)
	}

	if deduct {
		util.OrdersDeliveredTotal.Inc()
		util.StockDeductionsTotal.Add(float64(len(items)))
		s.publishDelivered(ctx, order.ID, items)
		if err := s.cache.InvalidateStockOverview(ctx); err != nil {
			s.logger.Warn("Failed to invalidate stock cache", zap.Error(err))
		}
	}

	return order, nil
}

// AddItem adds a product to an order's ledger. A product already present
// merges into its existing line by incrementing the quantity; a new line
// starts at quantity one with no price override.
func (s *OrderService) AddItem(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AddItem")
	defer span.End()

	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.store.GetOrderItemByProduct(ctx, order.ID, product.ID)
	if err != nil {
		return nil, err
	}

	if item != nil {
		item.Quantity++
		if err := s.store.UpdateOrderItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to update item: %w", err)
		}
	} else {
		item = &models.OrderItem{
			OrderID:      order.ID,
			ProductID:    product.ID,
			Quantity:     1,
			Discount:     decimal.Zero,
			UnitPrice:    product.Price,
			ProductTitle: product.Title,
		}
		if err := s.store.InsertOrderItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := s.recalculateTotal(ctx, order.ID); err != nil {
		return nil, err
	}

	util.ItemMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Info("Item added",
		zap.Int64("order_id", order.ID),
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", item.Quantity))

	return item, nil
}

// EditItem overwrites an item's quantity, discount and custom price,
// then refreshes the owning order's total.
func (s *OrderService) EditItem(ctx context.Context, itemID int64, quantity int, discount decimal.Decimal, customPrice decimal.NullDecimal) (*models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.EditItem")
	defer span.End()

	if err := validateItemUpdate(quantity, discount, customPrice); err != nil {
		return nil, err
	}

	item, err := s.store.GetOrderItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	item.Quantity = quantity
	item.Discount = discount
	item.CustomPrice = customPrice

	if err := s.store.UpdateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if err := s.recalculateTotal(ctx, item.OrderID); err != nil {
		return nil, err
	}

	util.ItemMutationsTotal.WithLabelValues("edit").Inc()
	return item, nil
}

// DeleteItem removes an item from its order's ledger and refreshes the
// owning order's total in the same request.
func (s *OrderService) DeleteItem(ctx context.Context, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteItem")
	defer span.End()

	item, err := s.store.GetOrderItemByID(ctx, itemID)
	if err != nil {
		return err
	}

	unlock, err := s.lockOrder(ctx, item.OrderID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteOrderItem(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if err := s.recalculateTotal(ctx, item.OrderID); err != nil {
		return err
	}

	util.ItemMutationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("Item deleted",
		zap.Int64("order_id", item.OrderID),
		zap.Int64("item_id", item.ID))

	return nil
}

// StockOverview lists products with their stock counters, served from
// the cache when warm.
func (s *OrderService) StockOverview(ctx context.Context) ([]models.Product, error) {
	if payload, err := s.cache.GetStockOverview(ctx); err != nil {
		s.logger.Warn("Stock cache read failed", zap.Error(err))
	} else if payload != nil {
		var products []models.Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	}

	products, err := s.store.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(products); err == nil {
		if err := s.cache.CacheStockOverview(ctx, payload, stockCacheTTL); err != nil {
			s.logger.Warn("Stock cache write failed", zap.Error(err))
		}
	}

	return products, nil
}

// recalculateTotal recomputes and persists the order total from the
// current ledger. Callers hold the order lock.
func (s *OrderService) recalculateTotal(ctx context.Context, orderID int64) error {
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	if err := s.store.UpdateOrderTotal(ctx, orderID, OrderTotal(items)); err != nil {
		return fmt.Errorf("failed to persist total: %w", err)
	}
	return nil
}

// lockOrder serializes mutations of one order. The returned func
// releases the lock.
func (s *OrderService) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	key := fmt.Sprintf("order:%d", orderID)
	token, ok, err := s.locker.AcquireLock(ctx, key, orderLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire order lock: %w", err)
	}
	if !ok {
		return nil, ErrOrderBusy
	}
	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release order lock",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, orderID int64, from, to models.OrderStatus) {
	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
	}
	if err := s.events.PublishStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
}

func (s *OrderService) publishDelivered(ctx context.Context, orderID int64, items []models.OrderItem) {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	event := &models.OrderDeliveredEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderDelivered),
		OrderID:   orderID,
		Items:     data,
	}
	if err := s.events.PublishOrderDelivered(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderDelivered event", zap.Error(err))
	}
}

// applyOrderUpdate copies request fields onto the order. Nil optional
// dates clear the stored value; the shipping flag defaults to false the
// same way an unchecked form box does.
func applyOrderUpdate(order *models.Order, req *UpdateOrderRequest) {
	order.OrderStatusID = req.OrderStatusID
	if req.InvoiceNumber != nil {
		order.InvoiceNumber = sql.NullInt64{Int64: int64(*req.InvoiceNumber), Valid: true}
	}
	order.ValidUntil = req.ValidUntil
	order.DateOfPurchase = req.DateOfPurchase
	order.ShowShippingAddress = req.ShowShippingAddress
	order.BillingName = req.BillingName
	order.BillingEmail = req.BillingEmail
	order.BillingAddress = req.BillingAddress
	order.ShippingAddress = req.ShippingAddress
}

func validateOrderUpdate(req *UpdateOrderRequest) error {
	fields := map[string]string{}
	if req.OrderStatusID.String() == "unknown" {
		fields["order_status_id"] = "unknown order status"
	}
	if req.InvoiceNumber != nil && *req.InvoiceNumber < 1 {
		fields["invoice_number"] = "must be a positive number"
	}
	if req.BillingName == "" {
		fields["billing_name"] = "must not be empty"
	}
	if req.BillingEmail == "" {
		fields["billing_email"] = "must not be empty"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateItemUpdate(quantity int, discount decimal.Decimal, customPrice decimal.NullDecimal) error {
	fields := map[string]string{}
	if quantity < 1 {
		fields["quantity"] = "must be a positive number"
	}
	if discount.IsNegative() {
		fields["discount"] = "must not be negative"
	}
	if customPrice.Valid && customPrice.Decimal.IsNegative() {
		fields["custom_price"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
