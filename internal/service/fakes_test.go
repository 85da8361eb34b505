package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-admin/internal/models"
	"order-admin/internal/store"

	"github.com/shopspring/decimal"
)

// In-memory fakes standing in for postgres, redis, kafka and the
// document/mail collaborators.

type fakeStore struct {
	mu         sync.Mutex
	orders     map[int64]*models.Order
	items      map[int64]*models.OrderItem
	products   map[int64]*models.Product
	nextItemID int64
	saveErr    error
	getCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   map[int64]*models.Order{},
		items:    map[int64]*models.OrderItem{},
		products: map[int64]*models.Product{},
	}
}

func midYear(year int) time.Time {
	return time.Date(year, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func (s *fakeStore) addOrder(id int64, status models.OrderStatus, year int) *models.Order {
	order := &models.Order{
		ID:            id,
		OrderStatusID: status,
		TotalPrice:    decimal.Zero,
		BillingName:   "Ada Lovelace",
		BillingEmail:  "ada@example.com",
		CreatedAt:     midYear(year),
	}
	s.orders[id] = order
	return order
}

func (s *fakeStore) addProduct(id int64, title, price string, stock int) *models.Product {
	product := &models.Product{
		ID:    id,
		Title: title,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	s.products[id] = product
	return product
}

func (s *fakeStore) addLedgerItem(orderID, productID int64, quantity int) *models.OrderItem {
	s.nextItemID++
	item := &models.OrderItem{
		ID:        s.nextItemID,
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Discount:  decimal.Zero,
	}
	s.items[item.ID] = item
	return item
}

func (s *fakeStore) orderItems(orderID int64) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range s.items {
		if item.OrderID != orderID {
			continue
		}
		clone := *item
		if product, ok := s.products[item.ProductID]; ok {
			clone.UnitPrice = product.Price
			clone.ProductTitle = product.Title
		}
		items = append(items, clone)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, &store.ErrNotFound{Kind: "order", ID: id}
	}
	clone := *order
	return &clone, nil
}

func (s *fakeStore) GetOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []models.Order
	for _, order := range s.orders {
		orders = append(orders, *order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *fakeStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderItems(orderID), nil
}

func (s *fakeStore) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, &store.ErrNotFound{Kind: "order item", ID: id}
	}
	clone := *item
	if product, ok := s.products[item.ProductID]; ok {
		clone.UnitPrice = product.Price
		clone.ProductTitle = product.Title
	}
	return &clone, nil
}

func (s *fakeStore) GetOrderItemByProduct(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.OrderID == orderID && item.ProductID == productID {
			clone := *item
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return nil, &store.ErrNotFound{Kind: "product", ID: id}
	}
	clone := *product
	return &clone, nil
}

func (s *fakeStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	var products []models.Product
	for _, product := range s.products {
		products = append(products, *product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *fakeStore) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItemID++
	item.ID = s.nextItemID
	clone := *item
	s.items[item.ID] = &clone
	return nil
}

func (s *fakeStore) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return &store.ErrNotFound{Kind: "order item", ID: item.ID}
	}
	clone := *item
	s.items[item.ID] = &clone
	return nil
}

func (s *fakeStore) DeleteOrderItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *fakeStore) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return &store.ErrNotFound{Kind: "order", ID: orderID}
	}
	order.TotalPrice = total
	return nil
}

func (s *fakeStore) MaxInvoiceNumber(ctx context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInvoiceNumberLocked(year), nil
}

func (s *fakeStore) maxInvoiceNumberLocked(year int) int {
	max := 0
	for _, order := range s.orders {
		if order.CreatedAt.Year() == year && order.InvoiceNumber.Valid && int(order.InvoiceNumber.Int64) > max {
			max = int(order.InvoiceNumber.Int64)
		}
	}
	return max
}

func (s *fakeStore) FindInvoiceNumberHolder(ctx context.Context, year, number int, excludeOrderID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.ID == excludeOrderID {
			continue
		}
		if order.CreatedAt.Year() == year && order.InvoiceNumber.Valid && int(order.InvoiceNumber.Int64) == number {
			return order.ID, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) SaveOrderTx(ctx context.Context, order *models.Order, deductStock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	stored, ok := s.orders[order.ID]
	if !ok {
		return &store.ErrNotFound{Kind: "order", ID: order.ID}
	}
	clone := *order
	clone.CreatedAt = stored.CreatedAt
	s.orders[order.ID] = &clone

	if deductStock {
		for _, item := range s.orderItems(order.ID) {
			if product, ok := s.products[item.ProductID]; ok {
				product.Stock--
			}
		}
	}
	return nil
}

func (s *fakeStore) AllocateInvoiceNumberTx(ctx context.Context, orderID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return 0, &store.ErrNotFound{Kind: "order", ID: orderID}
	}
	if order.InvoiceNumber.Valid {
		return int(order.InvoiceNumber.Int64), nil
	}
	next := s.maxInvoiceNumberLocked(order.CreatedAt.Year()) + 1
	order.InvoiceNumber.Int64 = int64(next)
	order.InvoiceNumber.Valid = true
	return next, nil
}

func (s *fakeStore) SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return &store.ErrNotFound{Kind: "order", ID: orderID}
	}
	order.OrderStatusID = status
	return nil
}

type fakeLocker struct {
	busy bool
}

func (l *fakeLocker) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	if l.busy {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	payload []byte
}

func (c *fakeCache) CacheStockOverview(ctx context.Context, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = payload
	return nil
}

func (c *fakeCache) GetStockOverview(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload, nil
}

func (c *fakeCache) InvalidateStockOverview(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payload = nil
	return nil
}

type fakePublisher struct {
	mu            sync.Mutex
	statusChanges []*models.OrderStatusChangedEvent
	delivered     []*models.OrderDeliveredEvent
	allocations   []*models.InvoiceNumberAllocatedEvent
	documentsSent []*models.DocumentSentEvent
}

func (p *fakePublisher) PublishStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanges = append(p.statusChanges, event)
	return nil
}

func (p *fakePublisher) PublishOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, event)
	return nil
}

func (p *fakePublisher) PublishInvoiceNumberAllocated(ctx context.Context, event *models.InvoiceNumberAllocatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocations = append(p.allocations, event)
	return nil
}

func (p *fakePublisher) PublishDocumentSent(ctx context.Context, event *models.DocumentSentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documentsSent = append(p.documentsSent, event)
	return nil
}

type fakeRenderer struct {
	renders int
	err     error
}

func (r *fakeRenderer) Render(order *models.Order, items []models.OrderItem, kind models.DocumentKind) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.renders++
	return "/tmp/" + string(kind) + ".pdf", nil
}

type sentMail struct {
	To      string
	Name    string
	Subject string
	Path    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, name, subject, attachmentPath string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Name: name, Subject: subject, Path: attachmentPath})
	return nil
}

type testEnv struct {
	svc      *OrderService
	store    *fakeStore
	locker   *fakeLocker
	cache    *fakeCache
	events   *fakePublisher
	renderer *fakeRenderer
	mailer   *fakeMailer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		locker:   &fakeLocker{},
		cache:    &fakeCache{},
		events:   &fakePublisher{},
		renderer: &fakeRenderer{},
		mailer:   &fakeMailer{},
	}
	env.svc = NewOrderService(env.store, env.locker, env.cache, env.events, env.renderer, env.mailer)
	return env
}
