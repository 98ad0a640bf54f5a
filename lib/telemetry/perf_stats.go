package telemetry

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var totalAllocGauge, _ = meter.Int64Gauge("total_allocated_mb")

// RecordProcessStats takes a single sample of cpu and heap usage, it is
// meant to be called once at the end of a run.
func RecordProcessStats(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuUsage) > 0 {
		cpuGauge.Record(ctx, cpuUsage[0])
	}
	memoryGauge.Record(ctx, int64(memStats.Alloc/1024/1024))
	totalAllocGauge.Record(ctx, int64(memStats.TotalAlloc/1024/1024))
}
