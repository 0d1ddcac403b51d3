package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TasksProcessedTotal counts terminal task outcomes per kind.
	TasksProcessedTotal *prometheus.CounterVec

	metricsOnce sync.Once
)

// MustRegisterMetrics registers the queue metrics on the given registerer.
// Safe to call more than once.
func MustRegisterMetrics(reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TasksProcessedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_tasks_processed_total",
				Help: "Total queue tasks processed grouped by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)
		reg.MustRegister(TasksProcessedTotal)
	})
}
