package runtimeadapter

import "fmt"

// Label keys set by this system on every container/network it creates
// (§6). Orphans are identifiable by LabelJobID + LabelTTL even if this
// process restarts.
const (
	LabelJobID      = "orcaops.job_id"
	LabelTTL        = "orcaops.ttl"
	LabelCreatedAt  = "orcaops.created_at"
	LabelWorkflowID = "orcaops.workflow_id"
	LabelService    = "orcaops.service"
)

// SandboxContainerName returns the name of the sandbox container for a job.
func SandboxContainerName(jobID string) string {
	return fmt.Sprintf("orcaops-sandbox-%s", jobID)
}

// ServiceContainerName returns the name of a workflow service container (§4.6).
func ServiceContainerName(workflowID, serviceName string) string {
	return fmt.Sprintf("%s-%s", workflowID, serviceName)
}

// WorkflowNetworkName returns the dedicated bridge network name for a workflow (§4.6).
func WorkflowNetworkName(workflowID string) string {
	return fmt.Sprintf("orcaops-net-%s", workflowID)
}
