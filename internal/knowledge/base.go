package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// KnowledgeBase holds the built-in patterns plus any user-added custom
// patterns loaded from a JSON file (§4.10).
type KnowledgeBase struct {
	mu         sync.Mutex
	patterns   []*FailurePattern
	customPath string
}

// NewKnowledgeBase loads custom patterns from root/failure_patterns.json,
// if present, alongside the built-ins.
func NewKnowledgeBase(root string) *KnowledgeBase {
	kb := &KnowledgeBase{
		patterns:   append([]*FailurePattern(nil), builtinPatterns...),
		customPath: filepath.Join(root, "failure_patterns.json"),
	}
	kb.loadCustom()
	return kb
}

func (kb *KnowledgeBase) loadCustom() {
	data, err := os.ReadFile(kb.customPath)
	if err != nil {
		return
	}
	var custom []*FailurePattern
	if err := json.Unmarshal(data, &custom); err != nil {
		return
	}
	kb.patterns = append(kb.patterns, custom...)
}

func (kb *KnowledgeBase) saveCustom() error {
	var custom []*FailurePattern
	for _, p := range kb.patterns {
		if !strings.HasPrefix(p.ID, "builtin_") {
			custom = append(custom, p)
		}
	}
	data, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		return err
	}
	return orcaops.WriteFileAtomic(kb.customPath, data, 0o644)
}

// AddPattern registers a user-defined pattern and persists it.
func (kb *KnowledgeBase) AddPattern(p *FailurePattern) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.patterns = append(kb.patterns, p)
	return kb.saveCustom()
}

// ListPatterns returns every pattern, optionally filtered by category.
func (kb *KnowledgeBase) ListPatterns(category string) []*FailurePattern {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if category == "" {
		return append([]*FailurePattern(nil), kb.patterns...)
	}
	var out []*FailurePattern
	for _, p := range kb.patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (kb *KnowledgeBase) match(text string) []*FailurePattern {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	var matched []*FailurePattern
	for _, p := range kb.patterns {
		if p.matches(text) {
			matched = append(matched, p)
		}
	}
	return matched
}

// SiblingLookup resolves up to 5 other failed runs for the same image,
// supplied by the Run Store (§4.10). Callers pass nil when no store is
// wired, in which case SiblingFailures is always empty.
type SiblingLookup func(imageRef, excludeJobID string) []string

// AnalyzeFailure scans record.Error plus stderr/stdout of every failed
// step against all patterns, aggregating matched causes and solutions,
// and optionally looks up sibling failures via lookup (§4.10).
func (kb *KnowledgeBase) AnalyzeFailure(record *orcaops.RunRecord, lookup SiblingLookup) orcaops.DebugAnalysis {
	var textParts []string
	if record.Error != "" {
		textParts = append(textParts, record.Error)
	}
	for _, step := range record.Steps {
		if step.ExitCode != 0 {
			if step.Stderr != "" {
				textParts = append(textParts, step.Stderr)
			}
			if step.Stdout != "" {
				textParts = append(textParts, step.Stdout)
			}
		}
	}
	text := strings.Join(textParts, "\n")

	matched := kb.match(text)

	var categories, titles, solutions []string
	seen := make(map[string]bool)
	for _, p := range matched {
		if !seen[p.Category] {
			categories = append(categories, p.Category)
			seen[p.Category] = true
		}
		titles = append(titles, p.Title)
		solutions = append(solutions, p.Solutions...)
	}

	var siblings []string
	if lookup != nil && record.ImageRef != "" {
		siblings = lookup(record.ImageRef, record.JobID)
		if len(siblings) > 5 {
			siblings = siblings[:5]
		}
	}

	return orcaops.DebugAnalysis{
		JobID:           record.JobID,
		Categories:      categories,
		Titles:          titles,
		Solutions:       solutions,
		SiblingFailures: siblings,
	}
}
