package loganalyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func step(stdout, stderr string) orcaops.StepResult {
	return orcaops.StepResult{
		Command:         "test",
		ExitCode:        0,
		Stdout:          stdout,
		Stderr:          stderr,
		DurationSeconds: 1.0,
	}
}

func TestAnalyze_ErrorDetection(t *testing.T) {
	t.Run("error in stderr", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("", "Error: file not found")})
		assert.Equal(t, 1, len(a.ErrorLines))
		assert.Equal(t, "Error: file not found", FirstError(a))
	})

	t.Run("exception matched only as a whole word", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("", "ValueError: invalid literal")})
		assert.Empty(t, a.ErrorLines)

		a2 := Analyze([]orcaops.StepResult{step("", "Exception: something broke")})
		assert.Equal(t, 1, len(a2.ErrorLines))
	})

	t.Run("failed pattern", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("FAILED: test_foo", "")})
		assert.Equal(t, 1, len(a.ErrorLines))
	})

	t.Run("exit code pattern", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("", "Process exit code 1")})
		assert.Equal(t, 1, len(a.ErrorLines))
	})

	t.Run("panic pattern", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("", "panic: runtime error")})
		assert.Equal(t, 1, len(a.ErrorLines))
	})
}

func TestAnalyze_WarningDetection(t *testing.T) {
	t.Run("warning in stdout", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("WARNING: disk space low", "")})
		assert.Equal(t, 1, a.WarningCount)
		assert.Empty(t, a.ErrorLines)
	})

	t.Run("deprecated", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("This function is deprecated", "")})
		assert.Equal(t, 1, a.WarningCount)
	})

	t.Run("error not double counted as warning", func(t *testing.T) {
		a := Analyze([]orcaops.StepResult{step("", "Error: bad\nWarning: minor")})
		assert.Equal(t, 1, len(a.ErrorLines))
		assert.Equal(t, 1, a.WarningCount)
	})
}

func TestAnalyze_StackTraceDetection(t *testing.T) {
	t.Run("python traceback", func(t *testing.T) {
		out := "Traceback (most recent call last):\n" +
			"  File \"test.py\", line 10, in main\n" +
			"    raise ValueError(\"bad\")\n" +
			"ValueError: bad\n"
		a := Analyze([]orcaops.StepResult{step("", out)})
		if assert.Equal(t, 1, len(a.StackTraces)) {
			assert.Contains(t, a.StackTraces[0], "Traceback")
			assert.Contains(t, a.StackTraces[0], "File")
		}
	})

	t.Run("node stack trace", func(t *testing.T) {
		out := "Error: bad\n" +
			"    at Object.<anonymous> (/app/index.js:1:1)\n" +
			"    at Module._compile (module.js:1:1)\n"
		a := Analyze([]orcaops.StepResult{step("", out)})
		assert.GreaterOrEqual(t, len(a.StackTraces), 1)
	})

	t.Run("caps at max stack traces", func(t *testing.T) {
		var steps []orcaops.StepResult
		for i := 0; i < maxStackTraces+3; i++ {
			steps = append(steps, step("", "Traceback (most recent call last):\n  File \"x.py\", line 1\n"))
		}
		a := Analyze(steps)
		assert.LessOrEqual(t, len(a.StackTraces), maxStackTraces)
	})
}

func TestAnalyze_Caps(t *testing.T) {
	t.Run("caps error lines", func(t *testing.T) {
		var sb string
		for i := 0; i < maxErrorLines+5; i++ {
			sb += "Error: something went wrong\n"
		}
		a := Analyze([]orcaops.StepResult{step("", sb)})
		assert.LessOrEqual(t, len(a.ErrorLines), maxErrorLines)
	})

	t.Run("truncates long lines", func(t *testing.T) {
		long := "Error: " + string(make([]byte, 300))
		a := Analyze([]orcaops.StepResult{step("", long)})
		if assert.Equal(t, 1, len(a.ErrorLines)) {
			assert.LessOrEqual(t, len(a.ErrorLines[0]), maxLineLength)
		}
	})
}

func TestFirstError_Empty(t *testing.T) {
	assert.Equal(t, "", FirstError(orcaops.LogAnalysis{}))
}
