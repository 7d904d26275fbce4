package orcaops

import (
	"fmt"
	"regexp"
	"strings"
)

// JobIDPattern is the validation pattern for job_id and workflow-derived
// job ids (§6).
var JobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ImagePattern is the validation pattern for sandbox.image references (§6).
var ImagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-/:@]{0,255}$`)

// ForbiddenArtifactChars are disallowed in artifact glob/path entries (§3).
const ForbiddenArtifactChars = ";|&$`(){}!"

const (
	MinTTLSeconds = 10
	MaxTTLSeconds = 86400
)

// ValidateJobID checks the job_id charset and length (§6).
func ValidateJobID(id string) error {
	if !JobIDPattern.MatchString(id) {
		return fmt.Errorf("%w: job_id %q must match %s", ErrValidation, id, JobIDPattern.String())
	}
	return nil
}

// ValidateImage checks the sandbox.image charset and length (§6).
func ValidateImage(image string) error {
	if !ImagePattern.MatchString(image) {
		return fmt.Errorf("%w: image %q must match %s", ErrValidation, image, ImagePattern.String())
	}
	return nil
}

// ValidateTTL checks that ttl_seconds lies in [10, 86400] (§3, §6).
func ValidateTTL(ttl int) error {
	if ttl < MinTTLSeconds || ttl > MaxTTLSeconds {
		return fmt.Errorf("%w: ttl_seconds %d must be in [%d, %d]", ErrValidation, ttl, MinTTLSeconds, MaxTTLSeconds)
	}
	return nil
}

// ValidateArtifactPattern rejects shell-metacharacter-bearing artifact
// entries (§3, §6). It does not validate that the path resolves to
// anything — artifact entries are literal paths, not shell globs (§9
// open question); a zero-match entry is not an error.
func ValidateArtifactPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: artifact pattern cannot be empty", ErrValidation)
	}
	if strings.ContainsAny(pattern, ForbiddenArtifactChars) {
		return fmt.Errorf("%w: artifact pattern %q contains a forbidden character (one of %q)", ErrValidation, pattern, ForbiddenArtifactChars)
	}
	return nil
}

// Validate checks a JobSpec against all §3/§6 constraints. It does not
// mutate spec and does not contact the runtime.
func (s *JobSpec) Validate() error {
	if err := ValidateJobID(s.JobID); err != nil {
		return err
	}
	if err := ValidateImage(s.Sandbox.Image); err != nil {
		return err
	}
	if err := ValidateTTL(s.TTLSeconds); err != nil {
		return err
	}
	if len(s.Commands) == 0 {
		return fmt.Errorf("%w: commands cannot be empty", ErrValidation)
	}
	for i, cmd := range s.Commands {
		if strings.TrimSpace(cmd.Command) == "" {
			return fmt.Errorf("%w: commands[%d].command cannot be empty", ErrValidation, i)
		}
		if cmd.TimeoutSeconds < 0 {
			return fmt.Errorf("%w: commands[%d].timeout_seconds cannot be negative", ErrValidation, i)
		}
	}
	for i, a := range s.Artifacts {
		if err := ValidateArtifactPattern(a); err != nil {
			return fmt.Errorf("artifacts[%d]: %w", i, err)
		}
	}
	return nil
}
