// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "adengine"

// Labels selects one sample of a vector metric
type Labels = metrics.Labels

// Metrics holds all metrics for the ad engine using luxfi/metric
type Metrics struct {
	metricsInstance metrics.Metrics

	// Serving metrics
	AdsServed    metrics.CounterVec
	AdsNotServed metrics.CounterVec
	ServeLatency metrics.Histogram

	// Ledger metrics
	TransactionsAdded   metrics.CounterVec
	TransactionsRemoved metrics.Counter
	LedgerErrors        metrics.CounterVec

	// Issuer metrics
	IssuerFetches   metrics.CounterVec
	IssuerRotations metrics.Counter
}

// NewMetrics creates a new metrics instance on its own registry
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New(namespace)

	m := &Metrics{
		metricsInstance: metricsInstance,
	}

	m.AdsServed = metricsInstance.NewCounterVec(
		"serving_ads_served_total",
		"Total number of ads served by type",
		[]string{"type"},
	)
	m.AdsNotServed = metricsInstance.NewCounterVec(
		"serving_ads_not_served_total",
		"Total number of serve requests that chose no ad, by type and reason",
		[]string{"type", "reason"},
	)
	m.ServeLatency = metricsInstance.NewHistogram(
		"serving_serve_duration_seconds",
		"Time to reach a serving decision",
		prometheus.DefBuckets,
	)

	m.TransactionsAdded = metricsInstance.NewCounterVec(
		"ledger_transactions_added_total",
		"Total number of transactions persisted, by confirmation type",
		[]string{"confirmation_type"},
	)
	m.TransactionsRemoved = metricsInstance.NewCounter(
		"ledger_remove_all_total",
		"Total number of full ledger resets",
	)
	m.LedgerErrors = metricsInstance.NewCounterVec(
		"ledger_errors_total",
		"Total number of failed ledger operations, by operation",
		[]string{"op"},
	)

	m.IssuerFetches = metricsInstance.NewCounterVec(
		"issuers_fetches_total",
		"Total number of issuer fetches, by outcome",
		[]string{"outcome"},
	)
	m.IssuerRotations = metricsInstance.NewCounter(
		"issuers_rotations_total",
		"Total number of times the issuer snapshot changed",
	)

	if err := metricsInstance.Registry().Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	return m, nil
}

// Value reads back the counter or gauge sample of name (without the
// namespace) whose labels are exactly labels. Missing samples read as 0.
func (m *Metrics) Value(name string, labels Labels) float64 {
	families, err := m.metricsInstance.Registry().Gather()
	if err != nil {
		return 0
	}

	full := namespace + "_" + name
	for _, family := range families {
		if family.GetName() != full {
			continue
		}
		for _, sample := range family.GetMetric() {
			pairs := sample.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			match := true
			for _, pair := range pairs {
				if v, ok := labels[pair.GetName()]; !ok || v != pair.GetValue() {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			if c := sample.GetCounter(); c != nil {
				return c.GetValue()
			}
			return sample.GetGauge().GetValue()
		}
	}
	return 0
}

// GetGatherer returns the prometheus gatherer for metrics export
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	return m.metricsInstance.Registry()
}

// GetRegisterer returns the prometheus registerer
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	return m.metricsInstance.Registry()
}
