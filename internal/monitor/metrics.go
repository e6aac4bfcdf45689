package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medmon_checks_total",
			Help: "Total monitor check runs by outcome.",
		},
		[]string{"monitor", "status"},
	)
	trackedEmployees = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medmon_tracked_employees",
			Help: "Employees currently tracked per monitor.",
		},
		[]string{"monitor"},
	)
	problematicEmployees = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medmon_problematic_employees",
			Help: "Employees per problematic bucket as of the last check.",
		},
		[]string{"monitor", "bucket"},
	)
)
