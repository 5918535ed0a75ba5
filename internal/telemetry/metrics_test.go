package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/donation"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := New(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	ctx := context.Background()

	m.ObserveCartOperation(ctx, "add", 3*time.Millisecond)
	m.ObserveCartOperation(ctx, "add", 5*time.Millisecond)
	m.ObserveOrder(ctx, &checkout.Order{Donated: true, Status: checkout.StatusDonationPending})
	m.ObserveDonation(ctx, donation.Result{Outcome: donation.OutcomeSent})
	m.ObserveDonation(ctx, donation.Result{Outcome: donation.OutcomeTimeout})
	m.ObserveDonation(ctx, donation.Result{Outcome: donation.OutcomeTimeout})

	got := collect(t, reader)

	hist, ok := got["cart.operation.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 8.0, hist.DataPoints[0].Sum, 1e-9)
	op, _ := hist.DataPoints[0].Attributes.Value(attribute.Key("operation"))
	assert.Equal(t, "add", op.AsString())

	orders, ok := got["checkout.orders"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, orders.DataPoints, 1)
	assert.Equal(t, int64(1), orders.DataPoints[0].Value)

	notes, ok := got["donation.notifications"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byOutcome := map[string]int64{}
	for _, dp := range notes.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"sent": 1, "timeout": 2}, byOutcome)
}
