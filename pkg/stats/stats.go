// Package stats samples host resource usage.
package stats

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// CPU is processor usage.
type CPU struct {
	Percent float64   `json:"percent"`
	PerCore []float64 `json:"per_core,omitempty"`
	Cores   int       `json:"cores"`
}

// Memory is virtual memory usage in bytes.
type Memory struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// Disk is usage of the filesystem holding the working directory.
type Disk struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// Network is the cumulative traffic over all interfaces.
type Network struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

// Snapshot is a point-in-time sample.
type Snapshot struct {
	CPU       CPU       `json:"cpu"`
	Memory    Memory    `json:"memory"`
	Disk      Disk      `json:"disk"`
	Network   *Network  `json:"network,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sampler reads host statistics.
type Sampler struct {
	// DiskPath is the filesystem to report; defaults to "/".
	DiskPath string

	// Interval is the CPU measurement window; zero compares against the
	// previous call.
	Interval time.Duration
}

// NewSampler returns a sampler for the root filesystem.
func NewSampler() *Sampler {
	return &Sampler{DiskPath: "/", Interval: 200 * time.Millisecond}
}

// Sample returns CPU, memory and disk usage. Detailed adds per-core CPU and
// network counters.
func (s *Sampler) Sample(ctx context.Context, detailed bool) (Snapshot, error) {
	snap := Snapshot{Timestamp: time.Now().UTC()}

	total, err := cpu.PercentWithContext(ctx, s.Interval, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(total) > 0 {
		snap.CPU.Percent = total[0]
	}
	snap.CPU.Cores = runtime.NumCPU()
	if detailed {
		perCore, err := cpu.PercentWithContext(ctx, 0, true)
		if err == nil {
			snap.CPU.PerCore = perCore
		}
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	snap.Memory = Memory{
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
		UsedPercent: vm.UsedPercent,
	}

	path := s.DiskPath
	if path == "" {
		path = "/"
	}
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read disk usage: %w", err)
	}
	snap.Disk = Disk{
		Path:        du.Path,
		Total:       du.Total,
		Free:        du.Free,
		Used:        du.Used,
		UsedPercent: du.UsedPercent,
	}

	if detailed {
		counters, err := net.IOCountersWithContext(ctx, false)
		if err == nil && len(counters) > 0 {
			c := counters[0]
			snap.Network = &Network{
				BytesSent:   c.BytesSent,
				BytesRecv:   c.BytesRecv,
				PacketsSent: c.PacketsSent,
				PacketsRecv: c.PacketsRecv,
			}
		}
	}

	return snap, nil
}
