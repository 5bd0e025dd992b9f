package infra

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/quietloop/driftd/internal/domain"
)

// CollectHostStats reports the host process's own resource usage, for
// the status command and telemetry heartbeats.
func CollectHostStats() (*domain.HostStats, error) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	stats := &domain.HostStats{PID: pid}

	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if created, err := proc.CreateTime(); err == nil && created > 0 {
		stats.UptimeSec = int64(time.Since(time.UnixMilli(created)).Seconds())
	}

	return stats, nil
}
