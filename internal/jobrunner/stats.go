package jobrunner

import (
	"context"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// bytesPerMB matches the spec's memory_peak_mb = max_usage / 2**20 (§4.2
// step 6): mebibytes, not decimal megabytes.
const bytesPerMB = 1 << 20

// nanosPerSecond converts ContainerStats.CPUUsageNanos to seconds.
const nanosPerSecond = 1e9

// sampleResources takes a single stats snapshot after step execution.
// Any failure yields a zero-filled ResourceUsage rather than failing
// the job (§4.2 step 6).
func (r *Runner) sampleResources(ctx context.Context, containerID string) *orcaops.ResourceUsage {
	stats, err := r.adapter.Stats(ctx, containerID)
	if err != nil {
		return &orcaops.ResourceUsage{}
	}

	return &orcaops.ResourceUsage{
		CPUSeconds:      float64(stats.CPUUsageNanos) / nanosPerSecond,
		MemoryPeakMB:    float64(stats.MemoryMaxBytes) / bytesPerMB,
		NetRxBytes:      int64(stats.NetRxBytes),
		NetTxBytes:      int64(stats.NetTxBytes),
		BlkioReadBytes:  int64(stats.BlkioReadBytes),
		BlkioWriteBytes: int64(stats.BlkioWriteBytes),
	}
}
