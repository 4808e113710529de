package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearbytix_tickets_reserved_total",
		Help: "Total tickets reserved",
	})

	TicketsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearbytix_tickets_paid_total",
		Help: "Total tickets paid",
	})

	TicketsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nearbytix_tickets_expired_total",
		Help: "Total tickets expired, by trigger source",
	}, []string{"source"})

	SoldOutRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearbytix_sold_out_rejections_total",
		Help: "Total reservation attempts rejected because the event was sold out",
	})

	// A clamp engaging means tickets_sold drifted from the true
	// reserved+paid count. Alert on this.
	CounterClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearbytix_tickets_sold_clamped_total",
		Help: "Times the tickets_sold decrement was clamped at zero",
	})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nearbytix_sweep_runs_total",
		Help: "Total sweep executions",
	})

	SweepBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nearbytix_sweep_batch_size",
		Help:    "Number of stale reservations processed per sweep",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
)
