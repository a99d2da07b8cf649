package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGatewayCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGateway(reg)

	g.ObserveOperation("donate", "ok")
	g.ObserveOperation("donate", "ok")
	g.ObserveOperation("donate", "user_rejected")
	g.DonationSubmitted()
	g.DonationSubmitted()
	g.DonationSettled("confirmed", 2*time.Second)

	if got := testutil.ToFloat64(g.Operations.WithLabelValues("donate", "ok")); got != 2 {
		t.Fatalf("expected 2 successful donations, got %v", got)
	}
	if got := testutil.ToFloat64(g.DonationsInFlight); got != 1 {
		t.Fatalf("expected 1 donation in flight, got %v", got)
	}
	if got := testutil.CollectAndCount(g.ConfirmationSeconds); got != 1 {
		t.Fatalf("expected 1 histogram series, got %d", got)
	}
}

func TestNilGatewayIsNoop(t *testing.T) {
	var g *Gateway
	g.ObserveOperation("donate", "ok")
	g.DonationSubmitted()
	g.DonationSettled("failed", time.Second)
}
