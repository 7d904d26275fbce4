// Package anomaly implements the Anomaly Detector (§4.9): a set of
// threshold checks run against a terminal RunRecord and its baseline,
// plus AnomalyStore, the JSONL-per-day persistence layer for detected
// anomalies.
package anomaly

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Detect runs every §4.9 check against record/baseline and returns every
// anomaly that fires. Detect requires baseline.sample_count >= 3; callers
// must not invoke it otherwise.
func Detect(record *orcaops.RunRecord, b *orcaops.PerformanceBaseline) []orcaops.AnomalyRecord {
	if b == nil || b.SampleCount < 3 {
		return nil
	}

	var out []orcaops.AnomalyRecord
	now := time.Now()

	if a := durationZScore(record, b, now); a != nil {
		out = append(out, *a)
	}
	if a := memoryRatio(record, b, now); a != nil {
		out = append(out, *a)
	}
	if a := flaky(record, b, now); a != nil {
		out = append(out, *a)
	}
	if a := successRateDegradation(record, b, now); a != nil {
		out = append(out, *a)
	}

	return out
}

func durationZScore(record *orcaops.RunRecord, b *orcaops.PerformanceBaseline, now time.Time) *orcaops.AnomalyRecord {
	if b.Stddev <= 0 || record.StartedAt == nil || record.FinishedAt == nil {
		return nil
	}
	duration := record.FinishedAt.Sub(*record.StartedAt).Seconds()
	z := (duration - b.Mean) / b.Stddev
	absZ := math.Abs(z)
	if absZ <= 2 {
		return nil
	}

	severity := orcaops.SeverityWarning
	if absZ > 3 {
		severity = orcaops.SeverityCritical
	}
	return &orcaops.AnomalyRecord{
		ID:          uuid.NewString(),
		JobID:       record.JobID,
		Fingerprint: record.Fingerprint,
		Kind:        orcaops.AnomalyKindDuration,
		Severity:    severity,
		Actual:      duration,
		Expected:    b.Mean,
		Message:     "duration deviates from baseline mean by more than 2 standard deviations",
		DetectedAt:  now,
	}
}

func memoryRatio(record *orcaops.RunRecord, b *orcaops.PerformanceBaseline, now time.Time) *orcaops.AnomalyRecord {
	if b.MemoryMaxMB <= 0 || record.ResourceUsage == nil || record.ResourceUsage.MemoryPeakMB <= 0 {
		return nil
	}
	ratio := record.ResourceUsage.MemoryPeakMB / b.MemoryMaxMB
	if ratio <= 1.5 {
		return nil
	}

	severity := orcaops.SeverityWarning
	if ratio > 2.0 {
		severity = orcaops.SeverityCritical
	}
	return &orcaops.AnomalyRecord{
		ID:          uuid.NewString(),
		JobID:       record.JobID,
		Fingerprint: record.Fingerprint,
		Kind:        orcaops.AnomalyKindMemory,
		Severity:    severity,
		Actual:      record.ResourceUsage.MemoryPeakMB,
		Expected:    b.MemoryMaxMB,
		Message:     "peak memory exceeds baseline max by more than 1.5x",
		DetectedAt:  now,
	}
}

func flaky(record *orcaops.RunRecord, b *orcaops.PerformanceBaseline, now time.Time) *orcaops.AnomalyRecord {
	total := b.SuccessCount + b.FailureCount
	if total < 10 || b.SuccessRate < 0.3 || b.SuccessRate >= 0.9 {
		return nil
	}
	return &orcaops.AnomalyRecord{
		ID:          uuid.NewString(),
		JobID:       record.JobID,
		Fingerprint: record.Fingerprint,
		Kind:        orcaops.AnomalyKindFlaky,
		Severity:    orcaops.SeverityWarning,
		Actual:      b.SuccessRate,
		Expected:    1.0,
		Message:     "success rate is flaky (0.3 <= rate < 0.9 over at least 10 runs)",
		DetectedAt:  now,
	}
}

func successRateDegradation(record *orcaops.RunRecord, b *orcaops.PerformanceBaseline, now time.Time) *orcaops.AnomalyRecord {
	total := b.SuccessCount + b.FailureCount
	if total < 5 || b.SuccessRate >= 0.8 {
		return nil
	}
	return &orcaops.AnomalyRecord{
		ID:          uuid.NewString(),
		JobID:       record.JobID,
		Fingerprint: record.Fingerprint,
		Kind:        orcaops.AnomalyKindSuccessRate,
		Severity:    orcaops.SeverityCritical,
		Actual:      b.SuccessRate,
		Expected:    0.8,
		Message:     "success rate has degraded below 0.8 over at least 5 runs",
		DetectedAt:  now,
	}
}
