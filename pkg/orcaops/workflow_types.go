package orcaops

import "time"

// WorkflowStatus is the lifecycle state of a workflow run (§3).
type WorkflowStatus string

const (
	WorkflowStatusPending WorkflowStatus = "pending"
	WorkflowStatusRunning WorkflowStatus = "running"
	WorkflowStatusSuccess WorkflowStatus = "success"
	WorkflowStatusFailed  WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
	WorkflowStatusPartial WorkflowStatus = "partial"
)

// OnComplete gates whether a workflow job runs given its dependencies' outcomes (§4.4).
type OnComplete string

const (
	OnCompleteSuccess OnComplete = "success"
	OnCompleteAlways  OnComplete = "always"
	OnCompleteFailure OnComplete = "failure"
)

func (o OnComplete) orDefault() OnComplete {
	if o == "" {
		return OnCompleteSuccess
	}
	return o
}

// MatrixSpec describes matrix expansion for a workflow job (§4.4).
type MatrixSpec struct {
	Parameters map[string][]string `yaml:"parameters" json:"parameters"`
	Exclude    []map[string]string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Include    []map[string]string `yaml:"include,omitempty" json:"include,omitempty"`
}

// ServiceDefinition describes a service dependency container (§4.6).
type ServiceDefinition struct {
	Image       string            `yaml:"image" json:"image"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	HealthCheck *HealthCheckSpec  `yaml:"health_check,omitempty" json:"health_check,omitempty"`
}

// HealthCheckSpec controls service readiness polling (§4.6).
type HealthCheckSpec struct {
	Interval string `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout  string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries  int    `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// WorkflowJob is a job-like node in a WorkflowSpec's DAG (§3).
type WorkflowJob struct {
	Image    string            `yaml:"image" json:"image"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Commands []Command         `yaml:"commands" json:"commands"`
	Artifacts []string         `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Timeout  int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Requires    []string               `yaml:"requires,omitempty" json:"requires,omitempty"`
	IfCondition string                 `yaml:"if,omitempty" json:"if,omitempty"`
	OnComplete  OnComplete             `yaml:"on_complete,omitempty" json:"on_complete,omitempty"`
	Matrix      *MatrixSpec            `yaml:"matrix,omitempty" json:"matrix,omitempty"`
	Services    map[string]ServiceDefinition `yaml:"services,omitempty" json:"services,omitempty"`
}

// WorkflowSpec is the parsed, validated form of a workflow YAML document (§3, §4.4).
type WorkflowSpec struct {
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Env         map[string]string      `yaml:"env,omitempty" json:"env,omitempty"`
	Timeout     int                    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Jobs        map[string]*WorkflowJob `yaml:"jobs" json:"jobs"`
}

// WorkflowJobStatus tracks one workflow job's execution state (§3).
type WorkflowJobStatus struct {
	Status     JobStatus  `json:"status"`
	JobID      string     `json:"job_id,omitempty"`
	MatrixKey  string     `json:"matrix_key,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// WorkflowRecord is the durable record of a workflow run (§3).
type WorkflowRecord struct {
	WorkflowID  string                        `json:"workflow_id"`
	SpecName    string                        `json:"spec_name"`
	Status      WorkflowStatus                `json:"status"`
	CreatedAt   time.Time                     `json:"created_at"`
	StartedAt   *time.Time                    `json:"started_at,omitempty"`
	FinishedAt  *time.Time                    `json:"finished_at,omitempty"`
	JobStatuses map[string]*WorkflowJobStatus `json:"job_statuses"`
	Env         map[string]string             `json:"env,omitempty"`
	TriggeredBy string                        `json:"triggered_by,omitempty"`
	Error       string                        `json:"error,omitempty"`
}
