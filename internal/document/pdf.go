// Package document renders invoice and proforma PDFs.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"order-admin/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// PDFRenderer writes billing documents under <storageDir>/invoices.
type PDFRenderer struct {
	storageDir string
}

// NewPDFRenderer creates a renderer rooted at the given storage dir.
func NewPDFRenderer(storageDir string) (*PDFRenderer, error) {
	dir := filepath.Join(storageDir, "invoices")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoice storage dir: %w", err)
	}
	return &PDFRenderer{storageDir: storageDir}, nil
}

// Render produces the PDF for an order and returns the artifact path,
// <storage>/invoices/<kind>-<orderID>.pdf.
func (r *PDFRenderer) Render(order *models.Order, items []models.OrderItem, kind models.DocumentKind) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, documentTitle(order, kind), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order %d, created %s", order.ID, order.CreatedAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Billing", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, order.BillingName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, order.BillingAddress, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, order.BillingEmail, "", 1, "L", false, 0, "")

	if order.ShowShippingAddress && order.ShippingAddress != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Shipping", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, order.ShippingAddress, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Product", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Discount", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for i := range items {
		item := &items[i]
		price := item.ResolvedUnitPrice()
		subtotal := price.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)

		title := item.ProductTitle
		if title == "" {
			title = fmt.Sprintf("Product %d", item.ProductID)
		}
		pdf.CellFormat(90, 7, title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, item.Discount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(165, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, order.TotalPrice.StringFixed(2), "1", 1, "R", false, 0, "")

	if order.ValidUntil != nil {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("Valid until %s", order.ValidUntil.Format("2006-01-02")), "", 1, "L", false, 0, "")
	}

	path := filepath.Join(r.storageDir, "invoices", fmt.Sprintf("%s-%d.pdf", kind, order.ID))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}
	return path, nil
}

func documentTitle(order *models.Order, kind models.DocumentKind) string {
	if kind == models.DocumentProforma {
		return fmt.Sprintf("Proforma invoice T-%d-%d", order.ID, time.Now().Year())
	}
	if order.InvoiceNumber.Valid {
		return fmt.Sprintf("Invoice %d/%d", order.InvoiceNumber.Int64, order.InvoiceYear())
	}
	return fmt.Sprintf("Invoice (order %d)", order.ID)
}
