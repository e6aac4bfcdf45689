package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	telegramSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medmon_telegram_send_total",
			Help: "Total Telegram delivery attempts by status.",
		},
		[]string{"status"},
	)
	telegramSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medmon_telegram_send_duration_seconds",
			Help:    "Duration of Telegram sendMessage HTTP requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
)
