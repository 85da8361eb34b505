package service

import (
	"testing"

	"order-admin/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEntersDelivered(t *testing.T) {
	assert.True(t, entersDelivered(models.StatusPaid, models.StatusDelivered))
	assert.True(t, entersDelivered(models.StatusNew, models.StatusDelivered))

	// re-saving a delivered order is not a transition
	assert.False(t, entersDelivered(models.StatusDelivered, models.StatusDelivered))

	// leaving delivered never deducts
	assert.False(t, entersDelivered(models.StatusDelivered, models.StatusPaid))

	// coming back in deducts again
	assert.True(t, entersDelivered(models.StatusPaid, models.StatusDelivered))
}

func TestTransitioned(t *testing.T) {
	assert.True(t, transitioned(models.StatusNew, models.StatusPaid))
	assert.False(t, transitioned(models.StatusPaid, models.StatusPaid))
}

func TestCanTransitionIsCurrentlyPermissive(t *testing.T) {
	statuses := []models.OrderStatus{
		models.StatusNew, models.StatusProformaSent, models.StatusPaid,
		models.StatusInvoiceSent, models.StatusDelivered, models.StatusCancelled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
