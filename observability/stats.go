package observability

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/corekv-io/corekv/memtable"
)

var (
	once sync.Once
)

type memTableStats struct {
	ctx                 context.Context
	shutdownCallback    func(ctx context.Context) error
	memoryUsage         metric.Int64ObservableGauge
	entries             metric.Int64ObservableGauge
	duplicateRejections metric.Int64ObservableGauge
}

func (stats *memTableStats) waitForShutdown() {
	if stats == nil || stats.shutdownCallback == nil {
		return
	}
	go func() {
		<-stats.ctx.Done()
		_ = stats.shutdownCallback(context.Background())
	}()
}

// InitMemTableStats registers observable gauges for one memtable's
// arena memory usage, entry count and duplicate rejections. The
// instruments sample through the memtable's concurrent-safe stats
// accessors, so registration is valid while the writer is active.
func InitMemTableStats(ctx context.Context, name string, mt *memtable.MemTable) (err error) {
	once.Do(func() {
		builder := &strings.Builder{}
		builder.WriteString("corekv/memtable")
		if len(strings.TrimSpace(name)) > 0 {
			builder.WriteString("/")
			builder.WriteString(name)
		} else {
			builder.WriteString("/")
			builder.WriteString("default")
		}
		name = builder.String()
		meter := otel.Meter(name)
		stats := &memTableStats{
			ctx: ctx,
		}
		var e error
		stats.memoryUsage, e = meter.Int64ObservableGauge(
			"corekv.memtable.memory.usage",
			metric.WithDescription(`Arena bytes granted to the memtable, bookkeeping included.`),
			metric.WithUnit("By"),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(mt.ApproximateMemoryUsage())
				return nil
			}),
		)
		err = multierr.Append(err, e)
		stats.entries, e = meter.Int64ObservableGauge(
			"corekv.memtable.entries",
			metric.WithDescription(`The memtable's entry count, every version counted.`),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(mt.Len())
				return nil
			}),
		)
		err = multierr.Append(err, e)
		stats.duplicateRejections, e = meter.Int64ObservableGauge(
			"corekv.memtable.duplicate.rejections",
			metric.WithDescription(`Writes dropped by the memtable's uniqueness check.`),
			metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
				ob.Observe(mt.DuplicateRejections())
				return nil
			}),
		)
		err = multierr.Append(err, e)
		stats.waitForShutdown()
	})
	return err
}
