package jobrunner

import (
	"context"
	"time"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// teardown removes containerID in finally-equivalent discipline (§4.2
// step 8): cleanup_status=destroyed on success, or leaked with
// ttl_expiry=now on failure so a sweeper can reap it later.
func (r *Runner) teardown(ctx context.Context, record *orcaops.RunRecord, containerID string) {
	if err := r.adapter.Remove(ctx, containerID, true); err != nil {
		logf(record.JobID, "WARN", "teardown failed, marking leaked: %v", err)
		record.CleanupStatus = orcaops.CleanupLeaked
		expiry := time.Now().UTC()
		record.TTLExpiry = &expiry
		return
	}
	record.CleanupStatus = orcaops.CleanupDestroyed
}
