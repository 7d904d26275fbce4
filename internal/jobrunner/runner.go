// Package jobrunner implements the Job Runner (§4.2), the hardest
// subsystem: it drives a single JobSpec through sandbox provisioning,
// sequential step execution with per-step timeouts, artifact
// collection, environment capture, resource sampling, log analysis,
// and teardown, then persists the result atomically.
//
// The step-execution shape (context timeout, demultiplexed output
// streams, exit-code classification) is grounded on the teacher's
// cub.executeToolSubprocess (internal/cub/executor.go), adapted from
// driving a local os/exec subprocess to driving a container exec
// session through runtimeadapter.Adapter.
package jobrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/orcaops/orcaops/internal/loganalyzer"
	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// maxOutputBytes caps captured stdout/stderr per step, mirroring the
// teacher's 10MB limitedWriter cap in cub.executeToolSubprocess.
const maxOutputBytes = 10 * 1024 * 1024

// redactedKeywords are matched case-insensitively against environment
// variable names during capture (§4.2 step 5).
var redactedKeywords = []string{"password", "secret", "token", "key", "api_key"}

// sandboxSleepCommand keeps the provisioned container alive between
// exec calls; the runner drives all work through Exec, never the
// container's own entrypoint.
var sandboxSleepCommand = []string{"sleep", "infinity"}

// Runner executes JobSpecs against a Runtime Adapter and persists the
// resulting RunRecord to an artifacts root (§4.2, §6).
type Runner struct {
	adapter runtimeadapter.Adapter
	root    string
}

// New returns a Runner that provisions sandboxes through adapter and
// writes run output under root/artifacts/<job_id>/.
func New(adapter runtimeadapter.Adapter, root string) *Runner {
	return &Runner{adapter: adapter, root: root}
}

// Run executes spec's 9-step contract (§4.2) and returns the resulting
// RunRecord. The returned error is non-nil only for failures the caller
// must react to (e.g. persistence failure); job-level failures are
// represented in the record's Status/Error, not via the error return.
func (r *Runner) Run(ctx context.Context, spec *orcaops.JobSpec) (*orcaops.RunRecord, error) {
	now := time.Now().UTC()
	record := &orcaops.RunRecord{
		JobID:       spec.JobID,
		Status:      orcaops.JobStatusRunning,
		CreatedAt:   now,
		StartedAt:   &now,
		ImageRef:    spec.Sandbox.Image,
		Fingerprint: spec.Fingerprint(),
		BaselineKey: spec.BaselineKey(),
		TriggeredBy: spec.TriggeredBy,
		Intent:      spec.Intent,
		ParentJobID: spec.ParentJobID,
		Tags:        spec.Tags,
		Metadata:    spec.Metadata,
		Steps:       []orcaops.StepResult{},
		Artifacts:   []orcaops.ArtifactMetadata{},
	}

	artifactsDir := filepath.Join(r.root, "artifacts", spec.JobID)

	containerID, err := r.provision(ctx, spec)
	if err != nil {
		record.Error = err.Error()
		record.Status = orcaops.JobStatusFailed
		r.finish(record)
		if perr := r.persist(record); perr != nil {
			return record, perr
		}
		return record, nil
	}
	record.SandboxID = containerID

	// Step 3: execute steps in order.
	execStatus := r.executeSteps(ctx, record, containerID, spec.Commands)

	// Step 4: collect artifacts regardless of step outcome.
	r.collectArtifacts(ctx, record, containerID, artifactsDir, spec.Artifacts)

	// Step 5: environment capture.
	record.Environment = r.captureEnvironment(ctx, containerID)

	// Step 6: resource usage sampling.
	record.ResourceUsage = r.sampleResources(ctx, containerID)

	// Step 7: log analysis.
	analysis := loganalyzer.Analyze(record.Steps)
	analysis = loganalyzer.Summarize(record, analysis)
	record.LogAnalysis = &analysis

	record.Status = execStatus

	// Step 8: teardown.
	r.teardown(ctx, record, containerID)

	r.finish(record)

	// Step 9: persist.
	if err := r.persist(record); err != nil {
		return record, err
	}
	return record, nil
}

// provision invokes Runtime.Run and classifies image_not_found/api_error
// per §4.2 step 2.
func (r *Runner) provision(ctx context.Context, spec *orcaops.JobSpec) (string, error) {
	labels := map[string]string{
		runtimeadapter.LabelJobID:     spec.JobID,
		runtimeadapter.LabelTTL:       fmt.Sprintf("%d", spec.TTLSeconds),
		runtimeadapter.LabelCreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	env := make([]string, 0, len(spec.Sandbox.Env))
	for k, v := range spec.Sandbox.Env {
		env = append(env, k+"="+v)
	}

	containerID, err := r.adapter.Run(ctx, spec.Sandbox.Image, runtimeadapter.RunOptions{
		Detach:      true,
		Command:     sandboxSleepCommand,
		Env:         env,
		Labels:      labels,
		NetworkName: spec.Sandbox.NetworkName,
		Name:        runtimeadapter.SandboxContainerName(spec.JobID),
	})
	if err != nil {
		return "", fmt.Errorf("provision sandbox: %w", err)
	}
	return containerID, nil
}

// finish sets FinishedAt now, stamped consistently whether the job
// succeeded, failed during provisioning, or ran to completion.
func (r *Runner) finish(record *orcaops.RunRecord) {
	finished := time.Now().UTC()
	record.FinishedAt = &finished
}

// persist writes run.json (pretty-printed) and steps.jsonl atomically
// (§4.2 step 9).
func (r *Runner) persist(record *orcaops.RunRecord) error {
	dir := filepath.Join(r.root, "artifacts", record.JobID)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := orcaops.WriteFileAtomic(filepath.Join(dir, "run.json"), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", orcaops.ErrPersistenceFailed, err)
	}

	var stepsBuf bytes.Buffer
	for _, step := range record.Steps {
		line, err := json.Marshal(step)
		if err != nil {
			return fmt.Errorf("marshal step result: %w", err)
		}
		stepsBuf.Write(line)
		stepsBuf.WriteByte('\n')
	}
	if err := orcaops.WriteFileAtomic(filepath.Join(dir, "steps.jsonl"), stepsBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", orcaops.ErrPersistenceFailed, err)
	}
	return nil
}

// isRedactedKey reports whether name contains (case-insensitively) any
// of the §4.2 step 5 redaction keywords.
func isRedactedKey(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range redactedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// logf matches the teacher's bracketed-level log.Printf convention.
func logf(jobID, level, format string, args ...any) {
	log.Printf("[%s] jobrunner: job_id=%s %s", level, jobID, fmt.Sprintf(format, args...))
}
