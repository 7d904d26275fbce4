package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func TestAnalyzeFailure_MatchesModuleNotFound(t *testing.T) {
	kb := NewKnowledgeBase(t.TempDir())
	record := &orcaops.RunRecord{
		JobID: "j1",
		Steps: []orcaops.StepResult{
			{ExitCode: 1, Stderr: "ModuleNotFoundError: No module named 'requests'"},
		},
	}

	analysis := kb.AnalyzeFailure(record, nil)
	require.Contains(t, analysis.Titles, "Python module not found")
	assert.Contains(t, analysis.Categories, "dependency")
	assert.NotEmpty(t, analysis.Solutions)
}

func TestAnalyzeFailure_NoMatchIsEmpty(t *testing.T) {
	kb := NewKnowledgeBase(t.TempDir())
	record := &orcaops.RunRecord{
		JobID: "j2",
		Steps: []orcaops.StepResult{{ExitCode: 1, Stderr: "something unrecognized happened"}},
	}

	analysis := kb.AnalyzeFailure(record, nil)
	assert.Empty(t, analysis.Titles)
	assert.Empty(t, analysis.Solutions)
}

func TestAnalyzeFailure_SiblingLookup(t *testing.T) {
	kb := NewKnowledgeBase(t.TempDir())
	record := &orcaops.RunRecord{
		JobID:    "j3",
		ImageRef: "python:3.11",
		Steps:    []orcaops.StepResult{{ExitCode: 1, Stderr: "out of memory"}},
	}

	called := false
	lookup := func(imageRef, excludeJobID string) []string {
		called = true
		assert.Equal(t, "python:3.11", imageRef)
		assert.Equal(t, "j3", excludeJobID)
		return []string{"a", "b", "c", "d", "e", "f"}
	}

	analysis := kb.AnalyzeFailure(record, lookup)
	assert.True(t, called)
	assert.Len(t, analysis.SiblingFailures, 5, "capped at 5")
}

func TestAddPattern_PersistsAndMatches(t *testing.T) {
	dir := t.TempDir()
	kb := NewKnowledgeBase(dir)

	err := kb.AddPattern(&FailurePattern{
		ID:           "custom_disk_full",
		RegexPattern: `(?i)no space left on device`,
		Category:     "disk",
		Title:        "Disk full",
		Solutions:    []string{"Free up disk space."},
	})
	require.NoError(t, err)

	record := &orcaops.RunRecord{
		JobID: "j4",
		Steps: []orcaops.StepResult{{ExitCode: 1, Stderr: "write failed: no space left on device"}},
	}
	analysis := kb.AnalyzeFailure(record, nil)
	assert.Contains(t, analysis.Titles, "Disk full")

	reloaded := NewKnowledgeBase(dir)
	patterns := reloaded.ListPatterns("disk")
	require.Len(t, patterns, 1)
	assert.Equal(t, "custom_disk_full", patterns[0].ID)
}

func TestListPatterns_FilterByCategory(t *testing.T) {
	kb := NewKnowledgeBase(t.TempDir())
	oom := kb.ListPatterns("oom")
	require.Len(t, oom, 1)
	assert.Equal(t, "builtin_oom", oom[0].ID)
}
