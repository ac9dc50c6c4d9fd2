package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsTotal     int64
	warnsTotal      int64
	tradesIngested  int64
	tradesExcluded  int64
	refreshRuns     int64
	markFetches     int64
	markFetchErrors int64
	snapshotWrites  int64
)

func recordWarn() {
	atomic.AddInt64(&warnsTotal, 1)
}

func recordError() {
	atomic.AddInt64(&errorsTotal, 1)
}

// IncrementTradesIngested counts validated trade records accepted at the
// ingestion boundary.
func IncrementTradesIngested(n int) {
	atomic.AddInt64(&tradesIngested, int64(n))
}

// IncrementTradesExcluded counts source rows the ingestion boundary refused.
func IncrementTradesExcluded(n int) {
	atomic.AddInt64(&tradesExcluded, int64(n))
}

// IncrementRefreshRuns counts completed mark refresh runs.
func IncrementRefreshRuns() {
	atomic.AddInt64(&refreshRuns, 1)
}

// IncrementMarkFetches counts individual venue mark fetches, successful or not.
func IncrementMarkFetches(n int) {
	atomic.AddInt64(&markFetches, int64(n))
}

// IncrementMarkFetchErrors counts venue fetches downgraded to null results.
func IncrementMarkFetchErrors(n int) {
	atomic.AddInt64(&markFetchErrors, int64(n))
}

// IncrementSnapshotWrites counts valuation snapshots exported to storage.
func IncrementSnapshotWrites() {
	atomic.AddInt64(&snapshotWrites, 1)
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of runtime and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, err := mem.VirtualMemory()
	if err != nil {
		memStats = &mem.VirtualMemoryStat{}
	}
	diskStats, err := disk.Usage("/")
	if err != nil {
		diskStats = &disk.UsageStat{}
	}

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"errors":            atomic.LoadInt64(&errorsTotal),
		"warns":             atomic.LoadInt64(&warnsTotal),
		"trades_ingested":   atomic.LoadInt64(&tradesIngested),
		"trades_excluded":   atomic.LoadInt64(&tradesExcluded),
		"refresh_runs":      atomic.LoadInt64(&refreshRuns),
		"mark_fetches":      atomic.LoadInt64(&markFetches),
		"mark_fetch_errors": atomic.LoadInt64(&markFetchErrors),
		"snapshot_writes":   atomic.LoadInt64(&snapshotWrites),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsTotal)))},
		{MetricName: aws.String("Warns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsTotal)))},
		{MetricName: aws.String("TradesIngested"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tradesIngested)))},
		{MetricName: aws.String("TradesExcluded"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tradesExcluded)))},
		{MetricName: aws.String("RefreshRuns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&refreshRuns)))},
		{MetricName: aws.String("MarkFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&markFetches)))},
		{MetricName: aws.String("MarkFetchErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&markFetchErrors)))},
		{MetricName: aws.String("SnapshotWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&snapshotWrites)))},
	}

	publishMetrics(ctx, data)
}
