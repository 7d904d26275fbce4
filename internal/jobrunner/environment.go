package jobrunner

import (
	"context"
	"strings"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// captureEnvironment inspects containerID and redacts any environment
// variable whose key contains a sensitive keyword (§4.2 step 5). A
// failed inspect yields an empty-but-non-nil Environment rather than
// failing the job.
func (r *Runner) captureEnvironment(ctx context.Context, containerID string) *orcaops.Environment {
	info, err := r.adapter.InspectContainer(ctx, containerID)
	if err != nil {
		return &orcaops.Environment{}
	}

	vars := make(map[string]string, len(info.EnvList))
	for _, kv := range info.EnvList {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if isRedactedKey(k) {
			v = "***REDACTED***"
		}
		vars[k] = v
	}

	// The Adapter surface reports per-container state, not the daemon
	// version; runtime_version is left to whatever wraps Runner with a
	// daemon-level Adapter that can supply it (none does today).
	return &orcaops.Environment{
		ImageDigest: info.ImageDigest,
		ResourceLimits: map[string]any{
			"memory_bytes": info.ResourceLimits.MemoryBytes,
			"nano_cpus":    info.ResourceLimits.NanoCPUs,
		},
		Vars: vars,
	}
}
