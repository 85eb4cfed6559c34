package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors updated by a pool.
type Metrics struct {
	Submitted prometheus.Counter
	Completed prometheus.Counter
	Panicked  prometheus.Counter
	Active    prometheus.Gauge
	Pending   prometheus.Gauge
}

// NewMetrics constructs the pool collectors under the namespace and
// registers them with the registerer. A nil registerer skips registration.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := Metrics{
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}),
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion",
		}),
		Panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "workers_active",
			Help:      "Number of workers currently executing a job",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "jobs_pending",
			Help:      "Number of jobs waiting in the queue",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Submitted, m.Completed, m.Panicked, m.Active, m.Pending} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return &m, nil
}
