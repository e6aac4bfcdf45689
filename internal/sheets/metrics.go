package sheets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "medmon_sheet_fetch_duration_seconds",
		Help:    "Duration of Google Sheets fetch requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"status"},
)
