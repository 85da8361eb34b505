package worker

import (
	"context"
	"log"

	"order-admin/internal/broker"
	"order-admin/internal/models"
	"order-admin/internal/store"
	"order-admin/internal/util"

	"go.uber.org/zap"
)

// StockWorker consumes OrderDelivered events and maintains the
// quantity-aware ordered/sold counters on products. The per-line stock
// decrement itself happens synchronously inside the order save
// transaction; this worker only keeps the bookkeeping counters current.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewStockWorker creates a new stock counter worker
func NewStockWorker(consumer *broker.Consumer, st *store.Store) *StockWorker {
	w := &StockWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderDelivered(w.handleOrderDelivered)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	log.Println("Starting stock worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	log.Println("Stopping stock worker...")
	return w.consumer.Close()
}

// handleOrderDelivered moves each delivered line's quantity from the
// ordered counter to the sold counter, once per event.
func (w *StockWorker) handleOrderDelivered(ctx context.Context, event *models.OrderDeliveredEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		if err := w.store.AddProductCounters(ctx, item.ProductID, -item.Quantity, item.Quantity); err != nil {
			w.logger.Error("Failed to update product counters",
				zap.Int64("order_id", event.OrderID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			return err
		}
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	w.logger.Info("Delivered order counters updated",
		zap.Int64("order_id", event.OrderID),
		zap.Int("lines", len(event.Items)))
	return nil
}
