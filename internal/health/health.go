package health

import (
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/fieldvision/fieldvision/internal/models"
)

// Collector samples host utilization for heartbeat payloads.
type Collector struct {
	logger zerolog.Logger
}

// NewCollector creates a health collector.
func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{logger: logger}
}

// Snapshot reads CPU, memory and disk utilization. Probes that fail are
// reported as zero so a flaky sensor never blocks a heartbeat.
func (c *Collector) Snapshot() *models.HealthSnapshot {
	snapshot := &models.HealthSnapshot{}

	cpuPercentages, err := cpu.Percent(0, false)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get CPU usage")
	} else if len(cpuPercentages) == 0 {
		c.logger.Warn().Msg("CPU usage data is empty")
	} else {
		snapshot.CPUPercent = cpuPercentages[0]
	}

	memStats, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to retrieve memory statistics")
	} else {
		snapshot.MemoryPercent = memStats.UsedPercent
	}

	diskStats, err := disk.Usage("/")
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get disk usage")
	} else {
		snapshot.DiskPercent = diskStats.UsedPercent
	}

	c.logger.Debug().
		Float64("cpu_percent", snapshot.CPUPercent).
		Float64("memory_percent", snapshot.MemoryPercent).
		Float64("disk_percent", snapshot.DiskPercent).
		Msg("Health snapshot collected")

	return snapshot
}
