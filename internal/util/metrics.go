package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_saved_total",
		Help: "Total number of order saves",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"from", "to"})

	OrdersDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_delivered_total",
		Help: "Total number of orders transitioned into delivered",
	})

	StockDeductionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_deductions_total",
		Help: "Total number of per-line stock deductions applied",
	})

	InvoiceNumbersAllocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_numbers_allocated_total",
		Help: "Total number of invoice numbers allocated",
	})

	InvoiceNumberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_number_collisions_total",
		Help: "Total number of rejected manual invoice number entries",
	})

	ItemMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_item_mutations_total",
		Help: "Total number of order item ledger mutations",
	}, []string{"op"})

	DocumentsRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_rendered_total",
		Help: "Total number of PDF documents rendered",
	}, []string{"kind"})

	DocumentsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_sent_total",
		Help: "Total number of documents mailed successfully",
	}, []string{"kind"})

	DocumentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_failed_total",
		Help: "Total number of document sends that failed",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
