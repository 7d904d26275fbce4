package workflow

import (
	"fmt"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Validate checks spec against §4.4: every `requires` name must exist,
// the dependency graph must be acyclic, and every `if` condition must
// match the whitelisted grammar.
func Validate(spec *orcaops.WorkflowSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: workflow name cannot be empty", orcaops.ErrValidation)
	}
	if len(spec.Jobs) == 0 {
		return fmt.Errorf("%w: workflow must declare at least one job", orcaops.ErrValidation)
	}

	for name, job := range spec.Jobs {
		for _, req := range job.Requires {
			if _, ok := spec.Jobs[req]; !ok {
				return fmt.Errorf("%w: jobs.%s requires unknown job %q", orcaops.ErrValidation, name, req)
			}
		}
		if job.IfCondition != "" {
			if _, err := ParseCondition(job.IfCondition); err != nil {
				return fmt.Errorf("jobs.%s.if: %w", name, err)
			}
		}
		if job.OnComplete != "" {
			switch job.OnComplete {
			case orcaops.OnCompleteSuccess, orcaops.OnCompleteAlways, orcaops.OnCompleteFailure:
			default:
				return fmt.Errorf("%w: jobs.%s.on_complete %q is not a recognized value", orcaops.ErrValidation, name, job.OnComplete)
			}
		}
	}

	if _, err := GetLevels(spec); err != nil {
		return err
	}
	return nil
}
