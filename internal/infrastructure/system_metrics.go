package infrastructure

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a point-in-time view of the Go runtime.
type RuntimeStats struct {
	Goroutines int64
	HeapAlloc  int64
	Sys        int64
	NumGC      int64
	Uptime     time.Duration
}

// ReadRuntimeStats samples the runtime. startedAt anchors the uptime.
func ReadRuntimeStats(startedAt time.Time) RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeStats{
		Goroutines: int64(runtime.NumGoroutine()),
		HeapAlloc:  int64(ms.HeapAlloc),
		Sys:        int64(ms.Sys),
		NumGC:      int64(ms.NumGC),
		Uptime:     time.Since(startedAt),
	}
}

// RegisterRuntimeMetrics exposes goroutine, memory, GC and uptime gauges that
// are sampled on every collection. Unregister the returned registration on
// shutdown.
func RegisterRuntimeMetrics(meter metric.Meter, startedAt time.Time) (metric.Registration, error) {
	var errs []error
	gauge := func(name, desc, unit string) metric.Int64ObservableGauge {
		opts := []metric.Int64ObservableGaugeOption{metric.WithDescription(desc)}
		if unit != "" {
			opts = append(opts, metric.WithUnit(unit))
		}
		g, err := meter.Int64ObservableGauge(name, opts...)
		errs = append(errs, err)
		return g
	}

	goroutines := gauge("runtime_goroutines", "Number of live goroutines", "")
	heap := gauge("runtime_heap_alloc_bytes", "Bytes of allocated heap objects", "By")
	sys := gauge("runtime_sys_bytes", "Bytes obtained from the OS", "By")
	gcs := gauge("runtime_gc_cycles", "Completed GC cycles", "")
	uptime, err := meter.Float64ObservableGauge("process_uptime_seconds",
		metric.WithDescription("Seconds since the process started"), metric.WithUnit("s"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := ReadRuntimeStats(startedAt)
		o.ObserveInt64(goroutines, s.Goroutines)
		o.ObserveInt64(heap, s.HeapAlloc)
		o.ObserveInt64(sys, s.Sys)
		o.ObserveInt64(gcs, s.NumGC)
		o.ObserveFloat64(uptime, s.Uptime.Seconds())
		return nil
	}, goroutines, heap, sys, gcs, uptime)
}
