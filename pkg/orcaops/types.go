// Package orcaops defines the wire-level records shared across the job
// and workflow engine: specs submitted by callers, records persisted by
// the engine, and the enums that tie them together. All timestamps are
// UTC and serialize as RFC3339; all enums serialize as lowercase strings.
package orcaops

import "time"

// JobStatus is the lifecycle state of a single-container job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status represents a finished job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	default:
		return false
	}
}

func (s JobStatus) Validate() error {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSuccess, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return nil
	default:
		return errInvalid("job status", string(s))
	}
}

// CleanupStatus records whether the sandbox container was removed.
type CleanupStatus string

const (
	CleanupDestroyed CleanupStatus = "destroyed"
	CleanupLeaked    CleanupStatus = "leaked"
)

// Command is a single ordered step within a JobSpec.
type Command struct {
	Command        string `json:"command"`
	Cwd            string `json:"cwd,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SandboxSpec describes the container the job runs inside.
type SandboxSpec struct {
	Image       string            `json:"image"`
	Env         map[string]string `json:"env,omitempty"`
	Resources   map[string]any    `json:"resources,omitempty"`
	NetworkName string            `json:"network_name,omitempty"`
}

// JobSpec is the immutable input to the Job Runner (§3).
type JobSpec struct {
	JobID    string      `json:"job_id"`
	Sandbox  SandboxSpec `json:"sandbox"`
	Commands []Command   `json:"commands"`
	Artifacts []string   `json:"artifacts,omitempty"`
	TTLSeconds int       `json:"ttl_seconds"`

	TriggeredBy  string            `json:"triggered_by,omitempty"`
	Intent       string            `json:"intent,omitempty"`
	ParentJobID  string            `json:"parent_job_id,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// Template, if set, names a registered sandbox template (supplemented
	// feature, SPEC_FULL §2) that the Job Manager expands into Sandbox/
	// Commands/Artifacts before validation. Empty means "no template".
	Template string `json:"template,omitempty"`
}

// StepResult records the outcome of a single executed command (§3).
type StepResult struct {
	Command         string    `json:"command"`
	ExitCode        int       `json:"exit_code"`
	Stdout          string    `json:"stdout"`
	Stderr          string    `json:"stderr"`
	DurationSeconds float64   `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// ArtifactMetadata describes a file collected from the sandbox (§3).
type ArtifactMetadata struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// ArtifactHashUnavailable is the sentinel value recorded for
// ArtifactMetadata.SHA256 when the file could not be hashed.
const ArtifactHashUnavailable = "unavailable"

// ResourceUsage is a single stats snapshot taken after step execution (§4.2 step 6).
type ResourceUsage struct {
	CPUSeconds     float64 `json:"cpu_seconds"`
	MemoryPeakMB   float64 `json:"memory_peak_mb"`
	NetRxBytes     int64   `json:"net_rx_bytes"`
	NetTxBytes     int64   `json:"net_tx_bytes"`
	BlkioReadBytes int64   `json:"blkio_read_bytes"`
	BlkioWriteBytes int64  `json:"blkio_write_bytes"`
}

// Environment is the redacted environment capture (§4.2 step 5).
type Environment struct {
	ImageDigest     string            `json:"image_digest,omitempty"`
	ResourceLimits  map[string]any    `json:"resource_limits,omitempty"`
	RuntimeVersion  string            `json:"runtime_version,omitempty"`
	Vars            map[string]string `json:"vars,omitempty"`
}

// LogAnalysis is the output of the Log Analyzer (§4.7).
type LogAnalysis struct {
	ErrorLines   []string `json:"error_lines"`
	WarningCount int      `json:"warning_count"`
	StackTraces  []string `json:"stack_traces"`
	Summary      string   `json:"summary"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// RunRecord is the durable, append-only-once-terminal output of a job (§3).
type RunRecord struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	SandboxID string `json:"sandbox_id,omitempty"`
	ImageRef  string `json:"image_ref,omitempty"`

	Steps     []StepResult       `json:"steps"`
	Artifacts []ArtifactMetadata `json:"artifacts"`

	CleanupStatus CleanupStatus `json:"cleanup_status"`
	TTLExpiry     *time.Time    `json:"ttl_expiry,omitempty"`

	Fingerprint string `json:"fingerprint"`
	BaselineKey string `json:"baseline_key"`
	Error       string `json:"error,omitempty"`

	ResourceUsage *ResourceUsage `json:"resource_usage,omitempty"`
	Environment   *Environment   `json:"environment,omitempty"`
	LogAnalysis   *LogAnalysis   `json:"log_analysis,omitempty"`
	Anomalies     []AnomalyRecord `json:"anomalies,omitempty"`

	TriggeredBy string            `json:"triggered_by,omitempty"`
	Intent      string            `json:"intent,omitempty"`
	ParentJobID string            `json:"parent_job_id,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func errInvalid(field, value string) error {
	return &validationError{field: field, value: value}
}

type validationError struct {
	field string
	value string
}

func (e *validationError) Error() string {
	return "invalid " + e.field + ": " + e.value
}

func (e *validationError) Unwrap() error { return ErrValidation }
