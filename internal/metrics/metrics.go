// Package metrics exposes Prometheus instrumentation for the ledger gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Gateway holds the gateway's collectors. A nil *Gateway records nothing.
type Gateway struct {
	Operations          *prometheus.CounterVec
	DonationsInFlight   prometheus.Gauge
	ConfirmationSeconds *prometheus.HistogramVec
}

// NewGateway creates the gateway collectors and registers them with reg.
func NewGateway(reg prometheus.Registerer) *Gateway {
	g := &Gateway{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drfms_gateway_operations_total",
				Help: "Gateway operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		DonationsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "drfms_gateway_donations_in_flight",
				Help: "Donations submitted and awaiting confirmation",
			},
		),
		ConfirmationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drfms_gateway_confirmation_seconds",
				Help:    "Time from donation submission to confirmation or failure",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 300},
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(g.Operations, g.DonationsInFlight, g.ConfirmationSeconds)
	}
	return g
}

// ObserveOperation counts one finished operation.
func (g *Gateway) ObserveOperation(operation, outcome string) {
	if g == nil {
		return
	}
	g.Operations.WithLabelValues(operation, outcome).Inc()
}

// DonationSubmitted marks a donation as in flight.
func (g *Gateway) DonationSubmitted() {
	if g == nil {
		return
	}
	g.DonationsInFlight.Inc()
}

// DonationSettled records the end of a donation's confirmation wait.
func (g *Gateway) DonationSettled(state string, waited time.Duration) {
	if g == nil {
		return
	}
	g.DonationsInFlight.Dec()
	g.ConfirmationSeconds.WithLabelValues(state).Observe(waited.Seconds())
}
