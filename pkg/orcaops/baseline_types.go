package orcaops

import "time"

// RollingWindowCap bounds recent_durations / recent_memory_mb samples (§3).
const RollingWindowCap = 200

// PerformanceBaseline holds per-fingerprint historical performance (§3).
type PerformanceBaseline struct {
	Fingerprint string `json:"fingerprint"`

	SampleCount  int     `json:"sample_count"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	SuccessRate  float64 `json:"success_rate"`

	EMA    float64 `json:"ema"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`

	MemoryMeanMB float64 `json:"memory_mean_mb"`
	MemoryMaxMB  float64 `json:"memory_max_mb"`

	RecentDurations []float64 `json:"recent_durations"`
	RecentMemoryMB  []float64 `json:"recent_memory_mb"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// AnomalySeverity ranks how far a signal deviates from baseline (§4.9).
type AnomalySeverity string

const (
	SeverityWarning  AnomalySeverity = "warning"
	SeverityCritical AnomalySeverity = "critical"
)

// AnomalyKind names which check produced the anomaly (§4.9).
type AnomalyKind string

const (
	AnomalyKindDuration    AnomalyKind = "duration"
	AnomalyKindMemory      AnomalyKind = "memory"
	AnomalyKindFlaky       AnomalyKind = "flaky"
	AnomalyKindSuccessRate AnomalyKind = "success_rate"
)

// AnomalyRecord is a single detected deviation from baseline (§3, §4.9).
type AnomalyRecord struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	Fingerprint string          `json:"fingerprint"`
	Kind        AnomalyKind     `json:"kind"`
	Severity    AnomalySeverity `json:"severity"`
	Actual      float64         `json:"actual"`
	Expected    float64         `json:"expected"`
	Message     string          `json:"message"`
	DetectedAt  time.Time       `json:"detected_at"`
	Acknowledged bool           `json:"acknowledged"`
}

// RecommendationKind names the dimension a Recommendation addresses (§4.10).
type RecommendationKind string

const (
	RecommendationImageSize    RecommendationKind = "image_size"
	RecommendationTimeout      RecommendationKind = "timeout"
	RecommendationCaching      RecommendationKind = "dependency_caching"
	RecommendationReliability RecommendationKind = "reliability"
)

// Recommendation is a fleet-level actionable suggestion (§3, §4.10).
type Recommendation struct {
	ID          string             `json:"id"`
	Kind        RecommendationKind `json:"kind"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	ImageRef    string             `json:"image_ref,omitempty"`
	Title       string             `json:"title"`
	Detail      string             `json:"detail"`
	CreatedAt   time.Time          `json:"created_at"`
}

// DebugAnalysis is the Knowledge Base's per-run failure analysis (§3, §4.10).
type DebugAnalysis struct {
	JobID          string   `json:"job_id"`
	Categories     []string `json:"categories"`
	Titles         []string `json:"titles"`
	Solutions      []string `json:"solutions"`
	SiblingFailures []string `json:"sibling_failures,omitempty"`
}

// DurationPrediction is the Duration Predictor's estimate for a spec
// before it runs (§4.10).
type DurationPrediction struct {
	EstimatedSeconds float64 `json:"estimated_seconds"`
	RangeLow         float64 `json:"range_low"`
	RangeHigh        float64 `json:"range_high"`
	Confidence       float64 `json:"confidence"`
	SampleCount      int     `json:"sample_count"`
	BaselineKey      string  `json:"baseline_key,omitempty"`
}

// FailureRiskAssessment is the Failure Predictor's risk estimate for a
// spec before it runs (§4.10).
type FailureRiskAssessment struct {
	RiskScore             float64  `json:"risk_score"`
	RiskLevel             string   `json:"risk_level"`
	Factors               []string `json:"factors"`
	HistoricalSuccessRate float64  `json:"historical_success_rate,omitempty"`
	SampleCount           int      `json:"sample_count"`
	BaselineKey           string   `json:"baseline_key,omitempty"`
}

// OptimizationSuggestion is a single Auto-Optimizer suggestion for a
// not-yet-submitted spec (SPEC_FULL §2 supplement, grounded on
// original_source/orcaops/auto_optimizer.py).
type OptimizationSuggestion struct {
	SuggestionType string  `json:"suggestion_type"` // "timeout" | "memory"
	CurrentValue   string  `json:"current_value"`
	SuggestedValue string  `json:"suggested_value"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
	BaselineKey    string  `json:"baseline_key,omitempty"`
}
