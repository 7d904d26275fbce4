package jobrunner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// executeSteps runs spec's commands in order against containerID,
// enforcing each command's timeout_seconds and stopping at the first
// non-zero exit (§4.2 step 3). It returns the job-level status implied
// by how the loop ended.
func (r *Runner) executeSteps(ctx context.Context, record *orcaops.RunRecord, containerID string, commands []orcaops.Command) orcaops.JobStatus {
	for _, cmd := range commands {
		if ctx.Err() != nil {
			return orcaops.JobStatusCancelled
		}
		step, status := r.runStep(ctx, containerID, cmd)
		record.Steps = append(record.Steps, step)
		if step.ExitCode != 0 {
			return status
		}
	}
	return orcaops.JobStatusSuccess
}

// runStep executes a single command to completion or timeout, returning
// its StepResult and, if it failed, the job status it implies.
func (r *Runner) runStep(ctx context.Context, containerID string, cmd orcaops.Command) (orcaops.StepResult, orcaops.JobStatus) {
	workdir := cmd.Cwd
	if workdir == "" {
		workdir = "/"
	}

	start := time.Now()
	streams, err := r.adapter.Exec(ctx, containerID, []string{"/bin/sh", "-c", cmd.Command}, workdir)
	if err != nil {
		// Edge case (§4.2): sandbox died before the first exec.
		return orcaops.StepResult{
			Command:         cmd.Command,
			ExitCode:        -1,
			Stderr:          fmt.Sprintf("exec failed: %v", err),
			DurationSeconds: time.Since(start).Seconds(),
			Timestamp:       start.UTC(),
		}, orcaops.JobStatusFailed
	}

	var timeout time.Duration
	if cmd.TimeoutSeconds > 0 {
		timeout = time.Duration(cmd.TimeoutSeconds) * time.Second
	}

	stdout, stderr, outcome := drainStreams(ctx, streams, timeout)

	var exitCode int
	status := orcaops.JobStatusFailed
	switch outcome {
	case drainTimedOut:
		exitCode = 124
		stderr = append(stderr, []byte(fmt.Sprintf("Command timed out after %ds.", cmd.TimeoutSeconds))...)
		status = orcaops.JobStatusTimedOut
	case drainCancelled:
		exitCode = -1
		stderr = append(stderr, []byte("cancelled")...)
		status = orcaops.JobStatusCancelled
	default:
		exitCode, _, err = r.adapter.Inspect(ctx, streams.Handle)
		if err != nil {
			exitCode = -1
			stderr = append(stderr, []byte(fmt.Sprintf("inspect failed: %v", err))...)
		}
	}

	return orcaops.StepResult{
		Command:         cmd.Command,
		ExitCode:        exitCode,
		Stdout:          decodeUTF8(stdout),
		Stderr:          decodeUTF8(stderr),
		DurationSeconds: time.Since(start).Seconds(),
		Timestamp:       start.UTC(),
	}, status
}

// streamResult carries one stream's fully-drained bytes back to the
// select loop in drainStreams.
type streamResult struct {
	which string // "stdout" or "stderr"
	data  []byte
}

// drainOutcome reports why drainStreams stopped waiting.
type drainOutcome int

const (
	drainComplete drainOutcome = iota
	drainTimedOut
	drainCancelled
)

// drainStreams copies streams.Stdout/Stderr into memory (capped at
// maxOutputBytes each, matching the teacher's limitedWriter) until both
// readers reach EOF, the per-step timeout elapses, or ctx is cancelled
// — whichever comes first. Cancellation is how the Job Manager's Cancel
// signal interrupts a step mid-stream-read (§4.3).
func drainStreams(ctx context.Context, streams *runtimeadapter.ExecStreams, timeout time.Duration) (stdout, stderr []byte, outcome drainOutcome) {
	results := make(chan streamResult, 2)
	go func() { results <- streamResult{"stdout", readCapped(streams.Stdout)} }()
	go func() { results <- streamResult{"stderr", readCapped(streams.Stderr)} }()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	remaining := 2
	for remaining > 0 {
		select {
		case res := <-results:
			if res.which == "stdout" {
				stdout = res.data
			} else {
				stderr = res.data
			}
			remaining--
		case <-deadline:
			return stdout, stderr, drainTimedOut
		case <-ctx.Done():
			return stdout, stderr, drainCancelled
		}
	}
	return stdout, stderr, drainComplete
}

// readCapped reads r to EOF, discarding bytes past maxOutputBytes.
func readCapped(r io.Reader) []byte {
	buf := &bytes.Buffer{}
	_, _ = io.Copy(buf, io.LimitReader(r, maxOutputBytes))
	// Drain and discard anything beyond the cap so the underlying
	// stream doesn't block a writer on a full pipe.
	_, _ = io.Copy(io.Discard, r)
	return buf.Bytes()
}

// decodeUTF8 replaces invalid UTF-8 byte sequences with the Unicode
// replacement character rather than rejecting them outright (§4.2
// edge cases).
func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
