// Package loganalyzer implements deterministic, regex-based error and
// warning extraction plus stack-trace accumulation over job step output
// (§4.7). No LLM or network call is involved — every summary is
// reproducible from the same RunRecord.
package loganalyzer

import (
	"regexp"
	"strings"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

const (
	maxStackTraces = 5
	maxErrorLines  = 20
	maxLineLength  = 200
)

var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(error|exception|fatal)\b[:\s]`),
	regexp.MustCompile(`(?i)\btraceback\b`),
	regexp.MustCompile(`(?i)\bfailed\b[:\s]`),
	regexp.MustCompile(`exit code [1-9]\d*`),
	regexp.MustCompile(`(?i)\bpanic\b[:\s]`),
}

var warningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(warning|warn)\b[:\s]`),
	regexp.MustCompile(`(?i)\bdeprecated\b`),
}

var stackTraceStart = []*regexp.Regexp{
	regexp.MustCompile(`Traceback \(most recent call last\)`),
	regexp.MustCompile(`^\s+at\s+.+\(.+:\d+:\d+\)`),
	regexp.MustCompile(`^goroutine \d+ \[`),
	regexp.MustCompile(`^\s+at\s+[\w.$]+\([\w.]+\.java:\d+\)`),
}

// Analyze runs the full §4.7 analysis pipeline over every step of a
// RunRecord's steps, aggregating error lines, warning counts, and stack
// traces across steps in order.
func Analyze(steps []orcaops.StepResult) orcaops.LogAnalysis {
	var allErrorLines []string
	var allTraces []string
	warningCount := 0

	for _, step := range steps {
		a := analyzeText(step.Stdout + "\n" + step.Stderr)
		warningCount += a.WarningCount
		allErrorLines = append(allErrorLines, a.ErrorLines...)
		allTraces = append(allTraces, a.StackTraces...)
	}

	if len(allErrorLines) > maxErrorLines {
		allErrorLines = allErrorLines[:maxErrorLines]
	}
	if len(allTraces) > maxStackTraces {
		allTraces = allTraces[:maxStackTraces]
	}

	return orcaops.LogAnalysis{
		ErrorLines:   allErrorLines,
		WarningCount: warningCount,
		StackTraces:  allTraces,
	}
}

// analyzeText applies the §4.7 line-scan to a single block of text
// (one step's combined stdout+stderr).
func analyzeText(text string) orcaops.LogAnalysis {
	lines := strings.Split(text, "\n")

	var errorLines []string
	var stackTraces []string
	warningCount := 0

	inStackTrace := false
	var currentTrace []string

	flush := func() {
		if inStackTrace && len(currentTrace) > 0 {
			stackTraces = append(stackTraces, strings.Join(currentTrace, "\n"))
		}
		currentTrace = nil
		inStackTrace = false
	}

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			flush()
			continue
		}

		isTraceStart := false
		for _, pat := range stackTraceStart {
			if pat.MatchString(line) {
				if inStackTrace && len(currentTrace) > 0 {
					stackTraces = append(stackTraces, strings.Join(currentTrace, "\n"))
				}
				currentTrace = []string{stripped}
				inStackTrace = true
				isTraceStart = true
				break
			}
		}

		if !isTraceStart && inStackTrace {
			isIndented := strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
			isContinuation := strings.HasPrefix(stripped, "Caused by") || strings.HasPrefix(stripped, "...")
			if isIndented || isContinuation {
				currentTrace = append(currentTrace, stripped)
			} else {
				if strings.Contains(stripped, ":") {
					currentTrace = append(currentTrace, stripped)
				}
				stackTraces = append(stackTraces, strings.Join(currentTrace, "\n"))
				currentTrace = nil
				inStackTrace = false
			}
		}

		matchedError := false
		for _, pat := range errorPatterns {
			if pat.MatchString(stripped) {
				matchedError = true
				truncated := stripped
				if len(truncated) > maxLineLength {
					truncated = truncated[:maxLineLength]
				}
				errorLines = append(errorLines, truncated)
				break
			}
		}

		if !matchedError {
			for _, pat := range warningPatterns {
				if pat.MatchString(stripped) {
					warningCount++
					break
				}
			}
		}
	}

	flush()

	if len(stackTraces) > maxStackTraces {
		stackTraces = stackTraces[:maxStackTraces]
	}
	if len(errorLines) > maxErrorLines {
		errorLines = errorLines[:maxErrorLines]
	}

	return orcaops.LogAnalysis{
		ErrorLines:   errorLines,
		WarningCount: warningCount,
		StackTraces:  stackTraces,
	}
}

// FirstError returns the first captured error line, or "" if none.
func FirstError(a orcaops.LogAnalysis) string {
	if len(a.ErrorLines) == 0 {
		return ""
	}
	return a.ErrorLines[0]
}
