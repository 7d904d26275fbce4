package loganalyzer

import (
	"fmt"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Summarize produces the one-liner and rule-based suggestions described
// in §4.7, filling LogAnalysis.Summary and LogAnalysis.Suggestions on a
// copy of the given analysis.
func Summarize(record *orcaops.RunRecord, analysis orcaops.LogAnalysis) orcaops.LogAnalysis {
	duration := formatDuration(durationSeconds(record))
	firstError := FirstError(analysis)

	analysis.Summary = oneLiner(record.Status, len(record.Steps), duration, firstError)
	analysis.Suggestions = suggestions(record.Status, analysis)
	return analysis
}

func durationSeconds(record *orcaops.RunRecord) float64 {
	if record.StartedAt == nil || record.FinishedAt == nil {
		return 0
	}
	return record.FinishedAt.Sub(*record.StartedAt).Seconds()
}

func oneLiner(status orcaops.JobStatus, stepCount int, duration, firstError string) string {
	switch status {
	case orcaops.JobStatusSuccess:
		return fmt.Sprintf("%d step(s) passed in %s", stepCount, duration)
	case orcaops.JobStatusFailed:
		if firstError != "" {
			return fmt.Sprintf("Failed: %s", truncate(firstError, 80))
		}
		return fmt.Sprintf("Failed after %s", duration)
	case orcaops.JobStatusTimedOut:
		return fmt.Sprintf("Timed out after %s", duration)
	case orcaops.JobStatusCancelled:
		return fmt.Sprintf("Cancelled after %s", duration)
	default:
		return fmt.Sprintf("%s in %s", status, duration)
	}
}

func suggestions(status orcaops.JobStatus, analysis orcaops.LogAnalysis) []string {
	var out []string
	if status == orcaops.JobStatusTimedOut {
		out = append(out, "Consider increasing the timeout or optimizing the command")
	}
	if status == orcaops.JobStatusFailed && len(analysis.StackTraces) > 0 {
		out = append(out, "Review the stack trace(s) for root cause")
	}
	if status == orcaops.JobStatusFailed && FirstError(analysis) == "" {
		out = append(out, "Check step stderr output for error details")
	}
	if analysis.WarningCount > 10 {
		out = append(out, fmt.Sprintf("%d warnings detected -- review for potential issues", analysis.WarningCount))
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds) / 60
	secs := int(seconds) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	hours := minutes / 60
	mins := minutes % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}
