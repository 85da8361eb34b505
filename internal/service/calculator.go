package service

import (
	"order-admin/internal/models"

	"github.com/shopspring/decimal"
)

// OrderTotal computes the total price of an order from its item ledger.
// Pure: same ledger in, same total out. The persisted order total is a
// cache of this value and must be refreshed after every ledger mutation.
func OrderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(lineSubtotal(&items[i]))
	}
	return total.Round(2)
}

// lineSubtotal prices one ledger line: resolved unit price times
// quantity, minus the line's flat discount.
func lineSubtotal(item *models.OrderItem) decimal.Decimal {
	price := item.ResolvedUnitPrice()
	return price.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)
}
