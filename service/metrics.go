package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload tracker metrics
var (
	uploadsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicedesk_uploads_accepted_total",
		Help: "Files accepted into the upload tracker",
	})

	uploadsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicedesk_uploads_rejected_total",
			Help: "Files rejected at admission, by reason",
		},
		[]string{"reason"},
	)

	uploadsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoicedesk_uploads_finished_total",
			Help: "Upload tasks that reached a terminal status",
		},
		[]string{"status"},
	)

	uploadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invoicedesk_uploads_in_flight",
		Help: "Upload tasks not yet in a terminal status",
	})
)
