package recommend

import (
	"fmt"

	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

const minOptimizerSamples = 10

// AutoOptimizer suggests per-spec timeout and memory-limit adjustments
// from the spec's baseline, before the spec is submitted (SPEC_FULL §2
// supplement, grounded on original_source/orcaops/auto_optimizer.py).
type AutoOptimizer struct {
	tracker *baseline.Tracker
}

// NewAutoOptimizer wraps a Baseline Tracker.
func NewAutoOptimizer(tracker *baseline.Tracker) *AutoOptimizer {
	return &AutoOptimizer{tracker: tracker}
}

// SuggestOptimizations returns zero, one, or two suggestions (timeout,
// memory) for spec based on its baseline history.
func (o *AutoOptimizer) SuggestOptimizations(spec *orcaops.JobSpec) []orcaops.OptimizationSuggestion {
	key := specBaselineKey(spec)
	b := o.tracker.Get(key)
	if b == nil || b.SampleCount < minOptimizerSamples {
		return nil
	}

	var out []orcaops.OptimizationSuggestion
	if s := optimizeTimeout(spec, b, key); s != nil {
		out = append(out, *s)
	}
	if s := suggestMemory(b, key); s != nil {
		out = append(out, *s)
	}
	return out
}

func optimizeTimeout(spec *orcaops.JobSpec, b *orcaops.PerformanceBaseline, key string) *orcaops.OptimizationSuggestion {
	if b.P99 <= 0 {
		return nil
	}
	suggested := b.P99 * 1.5
	current := float64(spec.TTLSeconds)

	if suggested >= current*0.5 {
		return nil
	}

	confidence := float64(b.SampleCount) / 50.0
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &orcaops.OptimizationSuggestion{
		SuggestionType: "timeout",
		CurrentValue:   fmt.Sprintf("%ds", spec.TTLSeconds),
		SuggestedValue: fmt.Sprintf("%.0fs", suggested),
		Reason: fmt.Sprintf(
			"p99 duration is %.1fs. Suggested timeout of %.0fs (1.5x p99) is well below current %ds.",
			b.P99, suggested, spec.TTLSeconds,
		),
		Confidence:  confidence,
		BaselineKey: key,
	}
}

func suggestMemory(b *orcaops.PerformanceBaseline, key string) *orcaops.OptimizationSuggestion {
	if b.MemoryMaxMB <= 0 {
		return nil
	}
	suggested := b.MemoryMaxMB * 1.5

	confidence := float64(b.SampleCount) / 50.0
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &orcaops.OptimizationSuggestion{
		SuggestionType: "memory",
		CurrentValue:   "unlimited",
		SuggestedValue: fmt.Sprintf("%.0fMB", suggested),
		Reason: fmt.Sprintf(
			"Peak memory is %.0fMB. Setting limit to %.0fMB (1.5x peak) provides headroom.",
			b.MemoryMaxMB, suggested,
		),
		Confidence:  confidence,
		BaselineKey: key,
	}
}
