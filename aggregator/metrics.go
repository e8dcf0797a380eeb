// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aggregator"

// Metrics counts batch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Batches      *prometheus.CounterVec
	Instructions *prometheus.CounterVec
	GasUsed      prometheus.Histogram
}

// NewMetrics registers the aggregator collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batches_total",
				Help:      "Batches executed, by result",
			},
			[]string{"result"},
		),
		Instructions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "instructions_total",
				Help:      "Instructions of committed batches, by action",
			},
			[]string{"action"},
		),
		GasUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "batch_gas_used",
			Help:      "Gas charged per committed batch",
			Buckets:   prometheus.ExponentialBuckets(10_000, 2, 10),
		}),
	}
}

func (m *Metrics) batchFailed() {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues("failed").Inc()
}

func (m *Metrics) batchCommitted(batch *Batch, receipt *Receipt) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues("ok").Inc()
	for i := range batch.Instructions {
		m.Instructions.WithLabelValues(batch.Instructions[i].Action.String()).Inc()
	}
	m.GasUsed.Observe(float64(receipt.GasUsed))
}
