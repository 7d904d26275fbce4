package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

func seedBaselineDurations(t *testing.T, tracker *baseline.Tracker, fingerprint string, durations []float64) {
	t.Helper()
	for _, d := range durations {
		finished := time.Now()
		started := finished.Add(-time.Duration(d * float64(time.Second)))
		_, err := tracker.Update(&orcaops.RunRecord{
			BaselineKey: fingerprint, Status: orcaops.JobStatusSuccess,
			StartedAt: &started, FinishedAt: &finished,
		})
		require.NoError(t, err)
	}
}

func TestAutoOptimizer_NoSuggestionsBelowMinSamples(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)
	key := specBaselineKey(testSpec())
	seedBaselineDurations(t, tracker, key, []float64{10, 10, 10})

	opt := NewAutoOptimizer(tracker)
	suggestions := opt.SuggestOptimizations(testSpec())
	assert.Empty(t, suggestions)
}

func TestAutoOptimizer_SuggestsLowerTimeout(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)
	key := specBaselineKey(testSpec())
	durations := make([]float64, 20)
	for i := range durations {
		durations[i] = 15.0
	}
	seedBaselineDurations(t, tracker, key, durations)

	opt := NewAutoOptimizer(tracker)
	suggestions := opt.SuggestOptimizations(testSpec())

	found := false
	for _, s := range suggestions {
		if s.SuggestionType == "timeout" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAutoOptimizer_NoTimeoutSuggestionWhenClose(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)
	key := specBaselineKey(testSpec())
	durations := make([]float64, 20)
	for i := range durations {
		durations[i] = 2000.0
	}
	seedBaselineDurations(t, tracker, key, durations)

	opt := NewAutoOptimizer(tracker)
	suggestions := opt.SuggestOptimizations(testSpec())

	for _, s := range suggestions {
		assert.NotEqual(t, "timeout", s.SuggestionType)
	}
}
