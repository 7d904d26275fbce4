// Package runstore is the filesystem-backed query layer over persisted
// run records (§4.8). It never holds state in memory between calls: every
// query re-scans `<root>/artifacts/*/run.json`, exactly like the teacher's
// hoard.ListArtefacts scans Redis on every invocation.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Store queries run records persisted under root/artifacts/<job_id>/run.json.
type Store struct {
	root string
}

// New returns a Store rooted at the given OrcaOps data directory.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) artifactsDir() string {
	return filepath.Join(s.root, "artifacts")
}

// Filter selects a subset of run records (§4.8). All non-zero fields are
// ANDed together.
type Filter struct {
	Status             orcaops.JobStatus
	ImageSubstring      string
	Tags               []string
	TriggeredBy        string
	After              *time.Time
	Before             *time.Time
	MinDurationSeconds float64
	MaxDurationSeconds float64
}

func (f *Filter) matches(r *orcaops.RunRecord) bool {
	if f == nil {
		return true
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.ImageSubstring != "" && !strings.Contains(r.ImageRef, f.ImageSubstring) {
		return false
	}
	for _, tag := range f.Tags {
		if !slices.Contains(r.Tags, tag) {
			return false
		}
	}
	if f.TriggeredBy != "" && r.TriggeredBy != f.TriggeredBy {
		return false
	}
	if f.After != nil && r.CreatedAt.Before(*f.After) {
		return false
	}
	if f.Before != nil && r.CreatedAt.After(*f.Before) {
		return false
	}
	if f.MinDurationSeconds > 0 || f.MaxDurationSeconds > 0 {
		d := duration(r)
		if f.MinDurationSeconds > 0 && d < f.MinDurationSeconds {
			return false
		}
		if f.MaxDurationSeconds > 0 && d > f.MaxDurationSeconds {
			return false
		}
	}
	return true
}

func duration(r *orcaops.RunRecord) float64 {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt).Seconds()
}

// Query scans every persisted run record, skipping malformed ones with a
// warning to stderr, applies filter, sorts by created_at descending, and
// paginates with limit/offset (limit <= 0 means no limit).
func (s *Store) Query(filter *Filter, limit, offset int) ([]*orcaops.RunRecord, error) {
	entries, err := os.ReadDir(s.artifactsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifacts dir: %w", err)
	}

	var records []*orcaops.RunRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.load(entry.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping malformed run record job_id=%s: %v\n", entry.Name(), err)
			continue
		}
		if filter.matches(record) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(records) {
			return nil, nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) load(jobID string) (*orcaops.RunRecord, error) {
	path := filepath.Join(s.artifactsDir(), jobID, "run.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record orcaops.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", orcaops.ErrCorruptRecord, err)
	}
	if record.JobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", orcaops.ErrCorruptRecord)
	}
	return &record, nil
}

// Get loads a single run record by job id.
func (s *Store) Get(jobID string) (*orcaops.RunRecord, error) {
	record, err := s.load(jobID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orcaops.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// CleanupOlderThan removes the entire <job_id> directory, artifacts
// included, for every record whose created_at is strictly older than
// now-days.
func (s *Store) CleanupOlderThan(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	entries, err := os.ReadDir(s.artifactsDir())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read artifacts dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.load(entry.Name())
		if err != nil {
			continue
		}
		if record.CreatedAt.Before(cutoff) {
			dir := filepath.Join(s.artifactsDir(), entry.Name())
			if err := os.RemoveAll(dir); err != nil {
				return removed, fmt.Errorf("remove %s: %w", dir, err)
			}
			removed++
		}
	}
	return removed, nil
}
