package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

func testSpec() *orcaops.JobSpec {
	return &orcaops.JobSpec{
		JobID:      "opt-test",
		Sandbox:    orcaops.SandboxSpec{Image: "python:3.11"},
		Commands:   []orcaops.Command{{Command: "pytest"}},
		TTLSeconds: 3600,
	}
}

func seedBaseline(t *testing.T, tracker *baseline.Tracker, fingerprint string, durations []float64) {
	t.Helper()
	for _, d := range durations {
		finished := time.Now()
		started := finished.Add(-time.Duration(d * float64(time.Second)))
		_, err := tracker.Update(&orcaops.RunRecord{
			BaselineKey: fingerprint,
			Status:      orcaops.JobStatusSuccess,
			StartedAt:   &started,
			FinishedAt:  &finished,
		})
		require.NoError(t, err)
	}
}

func TestDurationPredictor_NoHistoryFallsBack(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)
	p := NewDurationPredictor(tracker)

	pred := p.Predict(testSpec())
	assert.Equal(t, 0, pred.SampleCount)
	assert.InDelta(t, 0.05, pred.Confidence, 0.001)
}

func TestDurationPredictor_UsesBaseline(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)

	key := specBaselineKey(testSpec())
	seedBaseline(t, tracker, key, []float64{10, 12, 14, 13, 11})

	p := NewDurationPredictor(tracker)
	pred := p.Predict(testSpec())
	assert.Equal(t, 5, pred.SampleCount)
	assert.Equal(t, key, pred.BaselineKey)
	assert.LessOrEqual(t, pred.RangeLow, pred.EstimatedSeconds)
	assert.GreaterOrEqual(t, pred.RangeHigh, pred.EstimatedSeconds)
}

func TestFailurePredictor_NoHistoryIsLowRisk(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)
	p := NewFailurePredictor(tracker)

	risk := p.AssessRisk(testSpec())
	assert.Equal(t, "low", risk.RiskLevel)
}

func TestFailurePredictor_RiskLevels(t *testing.T) {
	tracker, err := baseline.NewTracker(t.TempDir())
	require.NoError(t, err)

	key := specBaselineKey(testSpec())
	seedBaseline(t, tracker, key, []float64{10})

	// Drive failures to push success rate down.
	for i := 0; i < 6; i++ {
		_, err := tracker.Update(&orcaops.RunRecord{BaselineKey: key, Status: orcaops.JobStatusFailed})
		require.NoError(t, err)
	}

	p := NewFailurePredictor(tracker)
	risk := p.AssessRisk(testSpec())
	assert.NotEqual(t, "low", risk.RiskLevel)
	assert.Greater(t, risk.RiskScore, 0.2)
}
