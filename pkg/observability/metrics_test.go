package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/modtest/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.REDMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return red, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestREDMetrics_RecordPhase(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	red.RecordPhase(context.Background(), "resolve", observability.StatusOK, 120*time.Millisecond)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "modtest.phase.runs.total")))
	assert.NotNil(t, findMetric(rm, "modtest.phase.duration.seconds"))
	assert.Nil(t, findMetric(rm, "modtest.phase.errors.total"))
}

func TestREDMetrics_RecordPhaseError(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	red.RecordPhase(context.Background(), "execute", observability.StatusError, time.Second)
	red.RecordPhase(context.Background(), "execute", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "modtest.phase.errors.total")))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	done := red.TrackInflight(context.Background(), "evaluate")
	assert.Equal(t, int64(1), sumValue(t, findMetric(collectMetrics(t, reader), "modtest.phase.inflight")))

	done()
	assert.Equal(t, int64(0), sumValue(t, findMetric(collectMetrics(t, reader), "modtest.phase.inflight")))
}

func TestREDMetrics_RecordSession(t *testing.T) {
	t.Parallel()

	red, reader := setupTestMeter(t)

	red.RecordSession(context.Background(), "failed", 4)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "modtest.sessions.total")))
	assert.NotNil(t, findMetric(rm, "modtest.modules.tested"))
}
