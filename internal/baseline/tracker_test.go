package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func successRecord(baselineKey string, durationSecs float64) *orcaops.RunRecord {
	finished := time.Now()
	started := finished.Add(-time.Duration(durationSecs * float64(time.Second)))
	return &orcaops.RunRecord{
		JobID:       "job-" + baselineKey,
		BaselineKey: baselineKey,
		Status:      orcaops.JobStatusSuccess,
		StartedAt:   &started,
		FinishedAt:  &finished,
	}
}

func TestUpdate_IgnoresNonTerminalStatuses(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	for _, status := range []orcaops.JobStatus{orcaops.JobStatusQueued, orcaops.JobStatusRunning, orcaops.JobStatusCancelled} {
		a, err := tr.Update(&orcaops.RunRecord{BaselineKey: "fp", Status: status})
		require.NoError(t, err)
		assert.Nil(t, a)
		assert.Nil(t, tr.Get("fp"))
	}
}

func TestUpdate_UnseenFailureDoesNothing(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Update(&orcaops.RunRecord{BaselineKey: "fp", Status: orcaops.JobStatusFailed})
	require.NoError(t, err)
	assert.Nil(t, tr.Get("fp"))
}

func TestUpdate_SuccessBuildsBaseline(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Update(successRecord("fp", 10))
	require.NoError(t, err)

	b := tr.Get("fp")
	require.NotNil(t, b)
	assert.Equal(t, 1, b.SampleCount)
	assert.Equal(t, 1, b.SuccessCount)
	assert.InDelta(t, 10, b.EMA, 0.001)
	assert.Equal(t, float64(1), b.SuccessRate)
}

func TestUpdate_FailureIncrementsCountOnly(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Update(successRecord("fp", 10))
	require.NoError(t, err)

	failed := successRecord("fp", 99)
	failed.Status = orcaops.JobStatusFailed
	_, err = tr.Update(failed)
	require.NoError(t, err)

	b := tr.Get("fp")
	assert.Equal(t, 1, b.FailureCount)
	assert.Equal(t, 1, b.SampleCount, "duration aggregates untouched by failure")
	assert.InDelta(t, 10, b.EMA, 0.001)
	assert.InDelta(t, 0.5, b.SuccessRate, 0.001)
}

func TestUpdate_EMAFollowsAlpha(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Update(successRecord("fp", 10))
	require.NoError(t, err)
	_, err = tr.Update(successRecord("fp", 20))
	require.NoError(t, err)

	b := tr.Get("fp")
	// ema = 0.2*20 + 0.8*10 = 12
	assert.InDelta(t, 12, b.EMA, 0.001)
}

func TestUpdate_InlineAnomalyWhenDurationSpikes(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = tr.Update(successRecord("fp", 10))
		require.NoError(t, err)
	}

	anomaly, err := tr.Update(successRecord("fp", 100))
	require.NoError(t, err)
	require.NotNil(t, anomaly)
	assert.Equal(t, orcaops.AnomalyKindDuration, anomaly.Kind)
	assert.Equal(t, orcaops.SeverityWarning, anomaly.Severity)
}

func TestUpdate_SingleSampleStatsCollapse(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Update(successRecord("fp", 42))
	require.NoError(t, err)

	b := tr.Get("fp")
	assert.Equal(t, float64(0), b.Stddev)
	assert.Equal(t, 42.0, b.P50)
	assert.Equal(t, 42.0, b.P95)
	assert.Equal(t, 42.0, b.P99)
}

func TestUpdate_RollingWindowCap(t *testing.T) {
	tr, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < orcaops.RollingWindowCap+10; i++ {
		_, err = tr.Update(successRecord("fp", float64(i)))
		require.NoError(t, err)
	}

	b := tr.Get("fp")
	assert.Len(t, b.RecentDurations, orcaops.RollingWindowCap)
}

func TestTracker_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewTracker(dir)
	require.NoError(t, err)

	_, err = tr.Update(successRecord("fp", 10))
	require.NoError(t, err)

	reloaded, err := NewTracker(dir)
	require.NoError(t, err)
	b := reloaded.Get("fp")
	require.NotNil(t, b)
	assert.Equal(t, 1, b.SampleCount)
}

func TestMigrateLegacy_SynthesizesSamples(t *testing.T) {
	b := &orcaops.PerformanceBaseline{
		Fingerprint:  "legacy",
		EMA:          15.0,
		SuccessCount: 7,
	}
	migrateLegacy(b)
	assert.Len(t, b.RecentDurations, 3)
	for _, d := range b.RecentDurations {
		assert.Equal(t, 15.0, d)
	}
}
