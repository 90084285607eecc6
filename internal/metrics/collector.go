// Package metrics periodically samples process and system resource
// usage during a pipeline run. Geometry assembly over a large extract
// is memory-heavy, so the samples make runaway stages visible.
package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot is one resource usage sample.
type Snapshot struct {
	CPUPercent        float64 // system wide, 0-100
	ProcessCPUPercent float64 // this process, can exceed 100 on multi-core
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	ProcessRSSGB      float64
	Timestamp         time.Time
}

// Collector periodically samples and logs resource usage.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu   sync.RWMutex
	last *Snapshot
}

// NewCollector creates a collector. Intervals below one second are
// raised to the 30 second default.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start samples until the context is cancelled. The first sample is
// taken immediately.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Last returns the most recent sample, or nil before the first one.
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) collect() {
	snap := &Snapshot{Timestamp: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryUsedGB = float64(vm.Used) / (1 << 30)
		snap.MemoryTotalGB = float64(vm.Total) / (1 << 30)
		snap.MemoryPercent = vm.UsedPercent
	}

	if c.proc != nil {
		if pct, err := c.proc.CPUPercent(); err == nil {
			snap.ProcessCPUPercent = pct
		}
		if mi, err := c.proc.MemoryInfo(); err == nil {
			snap.ProcessRSSGB = float64(mi.RSS) / (1 << 30)
		}
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	c.logger.Debug("Resource usage",
		zap.Float64("cpu_pct", snap.CPUPercent),
		zap.Float64("proc_cpu_pct", snap.ProcessCPUPercent),
		zap.Float64("mem_used_gb", snap.MemoryUsedGB),
		zap.Float64("mem_pct", snap.MemoryPercent),
		zap.Float64("proc_rss_gb", snap.ProcessRSSGB))
}
