package recommend

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/internal/runstore"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

var bloatedImage = regexp.MustCompile(`^(python:\d+\.\d+|node:\d+|ruby:\d+\.\d+|golang:\d+\.\d+)$`)

var cacheableCommands = []string{
	"pip install", "npm install", "npm ci", "yarn install", "apt-get install", "apk add",
}

// Engine scans recent runs and baselines to emit fleet-wide recommendations
// across the four dimensions named in §4.10: image right-sizing, timeout
// right-sizing, dependency caching, reliability.
type Engine struct {
	store   *runstore.Store
	tracker *baseline.Tracker
}

// NewEngine wires the Run Store and Baseline Tracker the engine scans.
func NewEngine(store *runstore.Store, tracker *baseline.Tracker) *Engine {
	return &Engine{store: store, tracker: tracker}
}

// Generate runs every check and returns the combined recommendation set.
func (e *Engine) Generate(limit int) ([]orcaops.Recommendation, error) {
	records, err := e.store.Query(nil, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("scan run records: %w", err)
	}
	baselines := e.tracker.All()

	var recs []orcaops.Recommendation
	recs = append(recs, imageRightSizing(records)...)
	recs = append(recs, timeoutRightSizing(baselines)...)
	recs = append(recs, cachingOpportunities(records)...)
	recs = append(recs, reliability(baselines)...)

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func imageRightSizing(records []*orcaops.RunRecord) []orcaops.Recommendation {
	var recs []orcaops.Recommendation
	seen := make(map[string]bool)
	for _, r := range records {
		img := r.ImageRef
		if img == "" || seen[img] {
			continue
		}
		seen[img] = true
		if !bloatedImage.MatchString(img) {
			continue
		}
		recs = append(recs, orcaops.Recommendation{
			ID:        uuid.NewString(),
			Kind:      orcaops.RecommendationImageSize,
			ImageRef:  img,
			Title:     fmt.Sprintf("Use slim/alpine variant for %s", img),
			Detail:    fmt.Sprintf("Image '%s' can be replaced with a slim or alpine variant to reduce pull time and disk usage.", img),
			CreatedAt: time.Now(),
		})
	}
	return recs
}

func timeoutRightSizing(baselines map[string]*orcaops.PerformanceBaseline) []orcaops.Recommendation {
	var recs []orcaops.Recommendation
	for key, b := range baselines {
		if b.SampleCount < 5 || b.P99 <= 0 {
			continue
		}
		if b.P99 >= defaultTimeoutSeconds*0.3 {
			continue
		}
		suggested := b.P99 * 2
		recs = append(recs, orcaops.Recommendation{
			ID:          uuid.NewString(),
			Kind:        orcaops.RecommendationTimeout,
			Fingerprint: key,
			Title:       "Reduce job timeout",
			Detail: fmt.Sprintf(
				"Baseline '%s' has p99 duration of %.1fs, well below the default %.0fs timeout. Suggested timeout: %.0fs (2x p99).",
				key, b.P99, defaultTimeoutSeconds, suggested,
			),
			CreatedAt: time.Now(),
		})
	}
	return recs
}

func cachingOpportunities(records []*orcaops.RunRecord) []orcaops.Recommendation {
	counts := make(map[string]int)
	for _, r := range records {
		for _, step := range r.Steps {
			for _, cacheable := range cacheableCommands {
				if strings.Contains(step.Command, cacheable) {
					counts[cacheable]++
					break
				}
			}
		}
	}

	var recs []orcaops.Recommendation
	for cmd, count := range counts {
		if count < 3 {
			continue
		}
		recs = append(recs, orcaops.Recommendation{
			ID:    uuid.NewString(),
			Kind:  orcaops.RecommendationCaching,
			Title: fmt.Sprintf("Cache '%s' dependencies", cmd),
			Detail: fmt.Sprintf(
				"Command '%s' appears in %d job runs. Pre-building dependencies into the image or using a cache volume would reduce execution time.",
				cmd, count,
			),
			CreatedAt: time.Now(),
		})
	}
	return recs
}

func reliability(baselines map[string]*orcaops.PerformanceBaseline) []orcaops.Recommendation {
	var recs []orcaops.Recommendation
	for key, b := range baselines {
		total := b.SuccessCount + b.FailureCount
		if total < 10 || b.SuccessRate >= 0.9 {
			continue
		}
		recs = append(recs, orcaops.Recommendation{
			ID:          uuid.NewString(),
			Kind:        orcaops.RecommendationReliability,
			Fingerprint: key,
			Title:       "Low success rate",
			Detail: fmt.Sprintf(
				"Baseline '%s' has a %.0f%% success rate over %d runs. Investigation is recommended.",
				key, b.SuccessRate*100, total,
			),
			CreatedAt: time.Now(),
		})
	}
	return recs
}
