package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus identifies a stage in the order lifecycle.
type OrderStatus int

// Order statuses. Delivered is the one distinguished state: entering it
// deducts product stock.
const (
	StatusNew          OrderStatus = 1
	StatusProformaSent OrderStatus = 2
	StatusPaid         OrderStatus = 3
	StatusInvoiceSent  OrderStatus = 4
	StatusDelivered    OrderStatus = 5
	StatusCancelled    OrderStatus = 6
)

// String returns a human-readable status name.
func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusProformaSent:
		return "proforma_sent"
	case StatusPaid:
		return "paid"
	case StatusInvoiceSent:
		return "invoice_sent"
	case StatusDelivered:
		return "delivered"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Order represents a customer order managed by the back office.
type Order struct {
	ID                  int64           `db:"id" json:"id"`
	OrderStatusID       OrderStatus     `db:"order_status_id" json:"order_status_id"`
	InvoiceNumber       sql.NullInt64   `db:"invoice_number" json:"invoice_number"`
	TotalPrice          decimal.Decimal `db:"total_price" json:"total_price"`
	ValidUntil          *time.Time      `db:"valid_until" json:"valid_until,omitempty"`
	DateOfPurchase      *time.Time      `db:"date_of_purchase" json:"date_of_purchase,omitempty"`
	ShowShippingAddress bool            `db:"show_shipping_address" json:"show_shipping_address"`
	BillingName         string          `db:"billing_name" json:"billing_name"`
	BillingEmail        string          `db:"billing_email" json:"billing_email"`
	BillingAddress      string          `db:"billing_address" json:"billing_address"`
	ShippingAddress     string          `db:"shipping_address" json:"shipping_address"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// InvoiceYear returns the calendar year that scopes this order's invoice
// number. Numbers are unique per creation year only.
func (o *Order) InvoiceYear() int {
	return o.CreatedAt.Year()
}

// OrderItem is one line of an order's ledger.
//
// CustomPrice is an explicit override: when null, the line is priced at
// the product's list price. A valid zero means "charge nothing", which is
// distinct from "no override".
type OrderItem struct {
	ID          int64               `db:"id" json:"id"`
	OrderID     int64               `db:"order_id" json:"order_id"`
	ProductID   int64               `db:"product_id" json:"product_id"`
	Quantity    int                 `db:"quantity" json:"quantity"`
	Discount    decimal.Decimal     `db:"discount" json:"discount"`
	CustomPrice decimal.NullDecimal `db:"custom_price" json:"custom_price"`

	// Resolved from the product at load time, not stored on the row.
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unit_price"`
	ProductTitle string          `db:"product_title" json:"product_title"`
}

// ResolvedUnitPrice returns the price one unit of this line sells for:
// the custom override when set, the product list price otherwise.
func (i *OrderItem) ResolvedUnitPrice() decimal.Decimal {
	if i.CustomPrice.Valid {
		return i.CustomPrice.Decimal
	}
	return i.UnitPrice
}

// Product represents a catalog product with its stock counters.
type Product struct {
	ID        int64           `db:"id" json:"id"`
	SKU       string          `db:"sku" json:"sku"`
	Title     string          `db:"title" json:"title"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	Ordered   int             `db:"ordered" json:"ordered"`
	Need      int             `db:"need" json:"need"`
	Sold      int             `db:"sold" json:"sold"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// DocumentKind selects which billing document to prepare.
type DocumentKind string

const (
	DocumentProforma DocumentKind = "proforma"
	DocumentInvoice  DocumentKind = "invoice"
)

// DocumentAction selects what to do with a prepared document.
type DocumentAction string

const (
	ActionPreview DocumentAction = "preview"
	ActionSend    DocumentAction = "send"
	ActionPrint   DocumentAction = "print"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
