package store

import (
	"context"
	"database/sql"
	"fmt"

	"order-admin/internal/models"

	"github.com/shopspring/decimal"
)

// Order item queries join the product so each line carries the current
// list price; the calculator falls back to it when no custom price
// override is set.
const orderItemColumns = `
	oi.id, oi.order_id, oi.product_id, oi.quantity, oi.discount,
	oi.custom_price, p.price AS unit_price, p.title AS product_title`

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrders retrieves orders newest first with limit/offset paging
func (s *Store) GetOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	return orders, err
}

// GetOrderItems retrieves the full item ledger for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT"+orderItemColumns+` FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 ORDER BY oi.id`, orderID)
	return items, err
}

// GetOrderItemByID retrieves a single order item
func (s *Store) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.GetContext(ctx, &item,
		"SELECT"+orderItemColumns+` FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "order item", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetOrderItemByProduct retrieves the item for a product within one
// order's ledger, or nil if the order has no line for that product yet.
func (s *Store) GetOrderItemByProduct(ctx context.Context, orderID, productID int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := s.db.GetContext(ctx, &item,
		"SELECT"+orderItemColumns+` FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 AND oi.product_id = $2`, orderID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertOrderItem creates a new order item
func (s *Store) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, discount, custom_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Discount, item.CustomPrice)
}

// UpdateOrderItem overwrites the item's mutable fields
func (s *Store) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE order_items SET quantity = $1, discount = $2, custom_price = $3 WHERE id = $4",
		item.Quantity, item.Discount, item.CustomPrice, item.ID)
	return err
}

// DeleteOrderItem removes an item from its order's ledger
func (s *Store) DeleteOrderItem(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM order_items WHERE id = $1", id)
	return err
}

// UpdateOrderTotal persists a recomputed order total
func (s *Store) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET total_price = $1, updated_at = NOW() WHERE id = $2",
		total, orderID)
	return err
}

// SetOrderStatus updates only the order's status
func (s *Store) SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET order_status_id = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// MaxInvoiceNumber returns the highest invoice number assigned to orders
// created in the given calendar year, or 0 when none exists.
func (s *Store) MaxInvoiceNumber(ctx context.Context, year int) (int, error) {
	var max int
	err := s.db.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(invoice_number), 0) FROM orders WHERE EXTRACT(YEAR FROM created_at)::int = $1",
		year)
	return max, err
}

// FindInvoiceNumberHolder returns the id of the order (other than
// excludeOrderID) created in year that already holds the given invoice
// number, or 0 when the number is free.
func (s *Store) FindInvoiceNumberHolder(ctx context.Context, year, number int, excludeOrderID int64) (int64, error) {
	var holder int64
	err := s.db.GetContext(ctx, &holder,
		`SELECT id FROM orders
		WHERE EXTRACT(YEAR FROM created_at)::int = $1
		AND invoice_number = $2 AND id <> $3`,
		year, number, excludeOrderID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return holder, nil
}

// SaveOrderTx persists the order's mutable fields and, when deductStock
// is set, decrements stock for every line of the ledger in the same
// transaction. The order row is locked first so concurrent saves
// serialize, and a failed stock write rolls the whole save back.
//
// Stock is reduced by one unit per item row regardless of the line
// quantity. That mirrors the fulfilment policy this system replaces;
// quantity-aware accounting lives in the ordered/sold counters.
func (s *Store) SaveOrderTx(ctx context.Context, order *models.Order, deductStock bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.GetContext(ctx, &locked, "SELECT id FROM orders WHERE id = $1 FOR UPDATE", order.ID)
	if err == sql.ErrNoRows {
		return &ErrNotFound{Kind: "order", ID: order.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET
			order_status_id = $1, invoice_number = $2, total_price = $3,
			valid_until = $4, date_of_purchase = $5, show_shipping_address = $6,
			billing_name = $7, billing_email = $8, billing_address = $9,
			shipping_address = $10, updated_at = NOW()
		WHERE id = $11`,
		order.OrderStatusID, order.InvoiceNumber, order.TotalPrice,
		order.ValidUntil, order.DateOfPurchase, order.ShowShippingAddress,
		order.BillingName, order.BillingEmail, order.BillingAddress,
		order.ShippingAddress, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if deductStock {
		var productIDs []int64
		err = tx.SelectContext(ctx, &productIDs,
			"SELECT product_id FROM order_items WHERE order_id = $1 ORDER BY id", order.ID)
		if err != nil {
			return fmt.Errorf("failed to load ledger for stock deduction: %w", err)
		}

		for _, productID := range productIDs {
			_, err = tx.ExecContext(ctx,
				"UPDATE products SET stock = stock - 1 WHERE id = $1", productID)
			if err != nil {
				return fmt.Errorf("failed to deduct stock for product %d: %w", productID, err)
			}
		}
	}

	return tx.Commit()
}

// AllocateInvoiceNumberTx assigns the next free invoice number of the
// order's creation year and persists it. Allocation for one year is
// serialized with an advisory lock keyed on the year, so two concurrent
// allocations cannot read the same maximum. An order that already holds
// a number keeps it.
func (s *Store) AllocateInvoiceNumberTx(ctx context.Context, orderID int64) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return 0, &ErrNotFound{Kind: "order", ID: orderID}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock order: %w", err)
	}

	if order.InvoiceNumber.Valid {
		return int(order.InvoiceNumber.Int64), tx.Commit()
	}

	year := order.InvoiceYear()
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(year)); err != nil {
		return 0, fmt.Errorf("failed to acquire year lock: %w", err)
	}

	var max int
	err = tx.GetContext(ctx, &max,
		"SELECT COALESCE(MAX(invoice_number), 0) FROM orders WHERE EXTRACT(YEAR FROM created_at)::int = $1",
		year)
	if err != nil {
		return 0, fmt.Errorf("failed to read max invoice number: %w", err)
	}

	next := max + 1
	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET invoice_number = $1, updated_at = NOW() WHERE id = $2",
		next, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to assign invoice number: %w", err)
	}

	return next, tx.Commit()
}
