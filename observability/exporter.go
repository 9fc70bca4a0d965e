package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
)

const (
	// A memtable fills in seconds under a write-heavy dev loop, so the
	// default sampling cadence is tighter than a service-level scrape.
	defaultExportInterval = 5 * time.Second
	defaultExportTimeout  = 2 * time.Second
)

// NewConsoleMetricsExporter installs a periodic stdout metrics reader
// as the global meter provider. Serves for test/dev environment; a
// production deployment plugs its own provider in before calling
// InitMemTableStats. Non-positive interval or timeout fall back to the
// memtable dev-loop defaults above.
func NewConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (func(ctx context.Context) error, error) {
	if interval <= 0 {
		interval = defaultExportInterval
	}
	if timeout <= 0 {
		timeout = defaultExportTimeout
	}
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	callback := mp.Shutdown
	otel.SetMeterProvider(mp)
	return callback, nil
}
