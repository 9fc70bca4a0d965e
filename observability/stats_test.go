package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/corekv-io/corekv/memtable"
)

func TestInitMemTableStats_GaugesObserve(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mt := memtable.New()
	require.NoError(t, InitMemTableStats(ctx, "unit", mt))

	mt.Put(1, []byte("k"), []byte("v"))
	mt.Put(2, []byte("k"), []byte("v2"))
	mt.Put(2, []byte("k"), []byte("dup"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Contains(t, rm.ScopeMetrics[0].Scope.Name, "corekv/memtable/unit")

	observed := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		gauge, ok := m.Data.(metricdata.Gauge[int64])
		require.True(t, ok, "unexpected instrument kind for %s", m.Name)
		require.Len(t, gauge.DataPoints, 1)
		observed[m.Name] = gauge.DataPoints[0].Value
	}
	require.EqualValues(t, 2, observed["corekv.memtable.entries"])
	require.EqualValues(t, 1, observed["corekv.memtable.duplicate.rejections"])
	require.Equal(t, mt.ApproximateMemoryUsage(), observed["corekv.memtable.memory.usage"])
	require.Positive(t, observed["corekv.memtable.memory.usage"])
}

func TestNewConsoleMetricsExporter(t *testing.T) {
	shutdown, err := NewConsoleMetricsExporter(time.Second, time.Second)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))

	// Non-positive durations fall back to the dev-loop defaults.
	shutdown, err = NewConsoleMetricsExporter(0, -1)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
