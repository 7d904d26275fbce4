// Package recommend implements the Recommendation Engine, Duration
// Predictor, Failure Predictor, and Auto-Optimizer (§4.10): fleet-wide
// analysis of run history and baselines, plus pre-run estimates derived
// from a job's baseline key.
package recommend

import (
	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

const defaultTimeoutSeconds = 3600.0

func specBaselineKey(spec *orcaops.JobSpec) string {
	commands := make([]string, len(spec.Commands))
	for i, c := range spec.Commands {
		commands[i] = c.Command
	}
	return orcaops.BaselineKey(spec.Sandbox.Image, commands)
}

// DurationPredictor estimates job duration from historical baselines (§4.10).
type DurationPredictor struct {
	tracker *baseline.Tracker
}

// NewDurationPredictor wraps a Baseline Tracker.
func NewDurationPredictor(tracker *baseline.Tracker) *DurationPredictor {
	return &DurationPredictor{tracker: tracker}
}

// Predict derives the baseline key for spec and returns a duration
// estimate. With no history it falls back to a wide, low-confidence
// guess.
func (p *DurationPredictor) Predict(spec *orcaops.JobSpec) orcaops.DurationPrediction {
	key := specBaselineKey(spec)
	b := p.tracker.Get(key)
	if b == nil || b.SampleCount < 1 {
		return orcaops.DurationPrediction{
			EstimatedSeconds: 300.0,
			Confidence:       0.05,
			RangeLow:         60.0,
			RangeHigh:        3600.0,
			SampleCount:      0,
		}
	}

	estimated := b.EMA
	if b.P50 > 0 {
		estimated = b.P50
	}

	rangeLow := estimated * 0.5
	if b.P50 > 0 {
		rangeLow = b.P50 * 0.8
	}
	rangeHigh := estimated * 2.0
	if b.P95 > 0 {
		rangeHigh = b.P95
	}

	if rangeLow > estimated {
		rangeLow = estimated
	}
	if rangeHigh < estimated {
		rangeHigh = estimated
	}

	confidence := float64(b.SampleCount) / 50.0
	if confidence > 0.95 {
		confidence = 0.95
	}

	return orcaops.DurationPrediction{
		EstimatedSeconds: estimated,
		RangeLow:         rangeLow,
		RangeHigh:        rangeHigh,
		Confidence:       confidence,
		SampleCount:      b.SampleCount,
		BaselineKey:      key,
	}
}

// FailurePredictor assesses failure risk from historical baselines (§4.10).
type FailurePredictor struct {
	tracker *baseline.Tracker
}

// NewFailurePredictor wraps a Baseline Tracker.
func NewFailurePredictor(tracker *baseline.Tracker) *FailurePredictor {
	return &FailurePredictor{tracker: tracker}
}

// AssessRisk derives the baseline key for spec and returns a failure
// risk assessment. With no history it assumes low risk.
func (p *FailurePredictor) AssessRisk(spec *orcaops.JobSpec) orcaops.FailureRiskAssessment {
	key := specBaselineKey(spec)
	b := p.tracker.Get(key)
	if b == nil || b.SampleCount < 1 {
		return orcaops.FailureRiskAssessment{
			RiskScore: 0.1,
			RiskLevel: "low",
			Factors:   []string{"No historical data available -- assuming low risk."},
		}
	}

	riskScore := 1.0 - b.SuccessRate

	var factors []string
	if b.SuccessRate < 0.8 {
		factors = append(factors, "Low historical success rate over recent runs.")
	}
	if b.FailureCount > 0 {
		factors = append(factors, "Historical failures recorded for this baseline.")
	}
	if len(factors) == 0 {
		factors = append(factors, "Historical data indicates stable execution.")
	}

	level := "high"
	switch {
	case riskScore < 0.2:
		level = "low"
	case riskScore < 0.5:
		level = "medium"
	}

	return orcaops.FailureRiskAssessment{
		RiskScore:             riskScore,
		RiskLevel:             level,
		Factors:               factors,
		HistoricalSuccessRate: b.SuccessRate,
		SampleCount:           b.SampleCount,
		BaselineKey:           key,
	}
}
