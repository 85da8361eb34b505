package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order-admin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintInvoiceAllocatesNextNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// year 2024 already holds invoice numbers {1, 2, 4}
	for i, number := range []int{1, 2, 4} {
		order := env.store.addOrder(int64(i+1), models.StatusInvoiceSent, 2024)
		order.InvoiceNumber.Int64 = int64(number)
		order.InvoiceNumber.Valid = true
	}
	env.store.addOrder(10, models.StatusPaid, 2024)

	result, err := env.svc.PrepareDocument(ctx, 10, models.DocumentInvoice, models.ActionPrint)
	require.NoError(t, err)
	assert.Equal(t, 5, result.InvoiceNumber)
	assert.NotEmpty(t, result.ArtifactPath)
	assert.False(t, result.Sent)

	stored, err := env.store.GetOrderByID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.InvoiceNumber.Int64)

	// print never changes the status
	assert.Equal(t, models.StatusPaid, stored.OrderStatusID)
	assert.Empty(t, env.mailer.sent)
	require.Len(t, env.events.allocations, 1)
	assert.Equal(t, 2024, env.events.allocations[0].Year)
}

func TestInvoiceNumbersAreSequentialWithinYear(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		env.store.addOrder(i, models.StatusPaid, 2026)
	}

	for i := int64(1); i <= 4; i++ {
		result, err := env.svc.PrepareDocument(ctx, i, models.DocumentInvoice, models.ActionPrint)
		require.NoError(t, err)
		assert.Equal(t, int(i), result.InvoiceNumber)
	}
}

func TestInvoiceNumbersResetAcrossYears(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	holder := env.store.addOrder(1, models.StatusInvoiceSent, 2024)
	holder.InvoiceNumber.Int64 = 1
	holder.InvoiceNumber.Valid = true
	env.store.addOrder(2, models.StatusPaid, 2025)

	result, err := env.svc.PrepareDocument(ctx, 2, models.DocumentInvoice, models.ActionPrint)
	require.NoError(t, err)

	// the 2025 order reuses number 1 even though 2024 already used it
	assert.Equal(t, 1, result.InvoiceNumber)
}

func TestPreviewDoesNotAllocate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addOrder(1, models.StatusPaid, 2026)

	result, err := env.svc.PrepareDocument(ctx, 1, models.DocumentInvoice, models.ActionPreview)
	require.NoError(t, err)
	assert.Zero(t, result.InvoiceNumber)
	assert.NotEmpty(t, result.ArtifactPath)

	stored, err := env.store.GetOrderByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, stored.InvoiceNumber.Valid)
	assert.Empty(t, env.events.allocations)
}

func TestResendReusesExistingNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	order := env.store.addOrder(1, models.StatusInvoiceSent, 2026)
	order.InvoiceNumber.Int64 = 9
	order.InvoiceNumber.Valid = true

	result, err := env.svc.PrepareDocument(ctx, 1, models.DocumentInvoice, models.ActionSend)
	require.NoError(t, err)
	assert.Equal(t, 9, result.InvoiceNumber)
	assert.Empty(t, env.events.allocations, "re-send must not burn a fresh number")

	require.Len(t, env.mailer.sent, 1)
	assert.Contains(t, env.mailer.sent[0].Subject, "Invoice No: 9")
}

func TestSendProformaAdvancesStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addOrder(1, models.StatusNew, 2026)

	result, err := env.svc.PrepareDocument(ctx, 1, models.DocumentProforma, models.ActionSend)
	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Equal(t, models.StatusProformaSent, result.Status)
	assert.Zero(t, result.InvoiceNumber, "proformas carry no invoice number")

	stored, err := env.store.GetOrderByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProformaSent, stored.OrderStatusID)

	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "ada@example.com", env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Subject, fmt.Sprintf("T-1-%d", time.Now().Year()))

	require.Len(t, env.events.documentsSent, 1)
	assert.Equal(t, models.DocumentProforma, env.events.documentsSent[0].Kind)
}

func TestSendInvoiceAdvancesStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addOrder(1, models.StatusPaid, 2026)

	result, err := env.svc.PrepareDocument(ctx, 1, models.DocumentInvoice, models.ActionSend)
	require.NoError(t, err)
	assert.Equal(t, 1, result.InvoiceNumber)
	assert.Equal(t, models.StatusInvoiceSent, result.Status)

	require.Len(t, env.events.statusChanges, 1)
	assert.Equal(t, models.StatusPaid, env.events.statusChanges[0].FromStatus)
	assert.Equal(t, models.StatusInvoiceSent, env.events.statusChanges[0].ToStatus)
}

func TestSendFailureLeavesStatusUntouched(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.addOrder(1, models.StatusNew, 2026)
	env.mailer.err = assert.AnError

	_, err := env.svc.PrepareDocument(ctx, 1, models.DocumentProforma, models.ActionSend)
	require.ErrorIs(t, err, ErrDeliveryFailed)

	stored, err := env.store.GetOrderByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, stored.OrderStatusID, "a failed send must not advance status")
	assert.Empty(t, env.events.documentsSent)
	assert.Empty(t, env.events.statusChanges)
}

func TestRenderFailure(t *testing.T) {
	env := newTestEnv()
	env.store.addOrder(1, models.StatusNew, 2026)
	env.renderer.err = assert.AnError

	_, err := env.svc.PrepareDocument(context.Background(), 1, models.DocumentProforma, models.ActionPreview)
	assert.Error(t, err)
}

func TestPrepareDocumentRejectsUnknownKind(t *testing.T) {
	env := newTestEnv()
	env.store.addOrder(1, models.StatusNew, 2026)

	_, err := env.svc.PrepareDocument(context.Background(), 1, models.DocumentKind("receipt"), models.ActionPreview)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "kind")

	_, err = env.svc.PrepareDocument(context.Background(), 1, models.DocumentProforma, models.DocumentAction("fax"))
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "action")
}
