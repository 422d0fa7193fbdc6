package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

/* SystemMetrics represents current system metrics */
type SystemMetrics struct {
	Timestamp time.Time      `json:"timestamp"`
	CPU       CPUMetrics     `json:"cpu"`
	Memory    MemoryMetrics  `json:"memory"`
	Disk      DiskMetrics    `json:"disk"`
	Network   NetworkMetrics `json:"network"`
	Process   ProcessMetrics `json:"process"`
}

/* CPUMetrics contains CPU usage information */
type CPUMetrics struct {
	UsagePercent float64 `json:"usage_percent"`
	Count        int     `json:"count"`
}

/* MemoryMetrics contains memory usage information */
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

/* DiskMetrics contains disk usage information */
type DiskMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

/* NetworkMetrics contains network usage information */
type NetworkMetrics struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

/* ProcessMetrics contains process information */
type ProcessMetrics struct {
	GoRoutines int    `json:"go_routines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	HeapInuse  uint64 `json:"heap_inuse"`
}

/* CollectSystemMetrics collects current system metrics */
func CollectSystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	m := &SystemMetrics{
		Timestamp: time.Now(),
	}

	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		m.CPU.UsagePercent = cpuPercent[0]
	}

	cpuCount, err := cpu.Counts(true)
	if err == nil {
		m.CPU.Count = cpuCount
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		m.Memory.Total = memStat.Total
		m.Memory.Used = memStat.Used
		m.Memory.Available = memStat.Available
		m.Memory.UsedPercent = memStat.UsedPercent
	}

	diskStat, err := disk.UsageWithContext(ctx, "/")
	if err == nil {
		m.Disk.Total = diskStat.Total
		m.Disk.Used = diskStat.Used
		m.Disk.Free = diskStat.Free
		m.Disk.UsedPercent = diskStat.UsedPercent
	}

	netIO, err := net.IOCountersWithContext(ctx, false)
	if err == nil && len(netIO) > 0 {
		stats := netIO[0]
		m.Network.BytesSent = stats.BytesSent
		m.Network.BytesRecv = stats.BytesRecv
		m.Network.PacketsSent = stats.PacketsSent
		m.Network.PacketsRecv = stats.PacketsRecv
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Process.GoRoutines = runtime.NumGoroutine()
	m.Process.HeapAlloc = ms.HeapAlloc
	m.Process.HeapSys = ms.HeapSys
	m.Process.HeapInuse = ms.HeapInuse

	return m, nil
}
