// Package jobmanager implements the Job Manager (§4.3): an in-memory
// map of active job entries, each backed by a worker goroutine that
// drives the Job Runner, plus a fallback to the Run Store for
// completed jobs evicted from memory.
//
// The manager-lock / per-entry-lock split and the terminal-entry
// eviction bound are grounded on the teacher's WorkerManager
// (internal/orchestrator/workers.go): a coarse workerLock guards the
// map itself, while each tracked entry owns its own mutable state.
package jobmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orcaops/orcaops/internal/jobrunner"
	"github.com/orcaops/orcaops/internal/registry"
	"github.com/orcaops/orcaops/internal/runstore"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// maxCompletedInMemory bounds how many terminal entries the manager
// retains before evicting the oldest (§4.3 default).
const maxCompletedInMemory = 100

// JobEntry tracks one submitted job's in-memory state.
type JobEntry struct {
	mu     sync.Mutex // entry_lock: guards record and cancel below
	record *orcaops.RunRecord
	cancel context.CancelFunc
	done   bool
}

func (e *JobEntry) snapshot() *orcaops.RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.record
	cp.Steps = append([]orcaops.StepResult(nil), e.record.Steps...)
	cp.Artifacts = append([]orcaops.ArtifactMetadata(nil), e.record.Artifacts...)
	return &cp
}

func (e *JobEntry) isDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Manager owns the in-memory job map and dispatches worker goroutines
// that call the Job Runner (§4.3).
type Manager struct {
	mu         sync.Mutex // manager-level lock: guards entries and order
	entries    map[string]*JobEntry
	order      []string // insertion order, for terminal-entry eviction
	runner     *jobrunner.Runner
	store      *runstore.Store
	registry   *registry.Registry
	onComplete func(*orcaops.RunRecord)
	wg         sync.WaitGroup
}

// New returns a Manager that runs jobs through runner, persists them
// under root, and expands templates via registry before validation.
func New(runner *jobrunner.Runner, root string) *Manager {
	return &Manager{
		entries:  make(map[string]*JobEntry),
		runner:   runner,
		store:    runstore.New(root),
		registry: registry.New(root),
	}
}

// WithOnComplete registers fn to run after every job reaches a terminal
// state, letting the composition root feed completed records into the
// Baseline Tracker, Anomaly Detector, and Knowledge Base without the
// Job Manager importing any of them directly (§4.9, §4.10). fn runs on
// the job's own worker goroutine, so it must not block for long.
func (m *Manager) WithOnComplete(fn func(*orcaops.RunRecord)) *Manager {
	m.onComplete = fn
	return m
}

// Submit allocates an entry for spec and starts its worker goroutine.
// Duplicate job_id fails (§4.3).
func (m *Manager) Submit(spec *orcaops.JobSpec) (*orcaops.RunRecord, error) {
	if err := m.registry.Expand(spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.entries[spec.JobID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: job_id %q already submitted", orcaops.ErrConflict, spec.JobID)
	}

	now := time.Now().UTC()
	record := &orcaops.RunRecord{
		JobID:       spec.JobID,
		Status:      orcaops.JobStatusQueued,
		CreatedAt:   now,
		ImageRef:    spec.Sandbox.Image,
		Fingerprint: spec.Fingerprint(),
		BaselineKey: spec.BaselineKey(),
		TriggeredBy: spec.TriggeredBy,
		Intent:      spec.Intent,
		ParentJobID: spec.ParentJobID,
		Tags:        spec.Tags,
		Metadata:    spec.Metadata,
		Steps:       []orcaops.StepResult{},
		Artifacts:   []orcaops.ArtifactMetadata{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &JobEntry{record: record, cancel: cancel}
	m.entries[spec.JobID] = entry
	m.order = append(m.order, spec.JobID)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runWorker(ctx, entry, spec)

	return entry.snapshot(), nil
}

// runWorker transitions entry to running, invokes the Job Runner, and
// once the entry is terminal runs the eviction pass, which drops the
// oldest terminal entries beyond maxCompletedInMemory (§4.3).
func (m *Manager) runWorker(ctx context.Context, entry *JobEntry, spec *orcaops.JobSpec) {
	defer m.wg.Done()

	if ctx.Err() != nil {
		// Cancelled while still queued: never invoke the runner.
		entry.mu.Lock()
		cancelled := *entry.record
		cancelled.Status = orcaops.JobStatusCancelled
		now := time.Now().UTC()
		cancelled.FinishedAt = &now
		entry.record = &cancelled
		entry.done = true
		entry.mu.Unlock()
		m.evictOldestTerminal()
		return
	}

	entry.mu.Lock()
	running := *entry.record
	running.Status = orcaops.JobStatusRunning
	started := time.Now().UTC()
	running.StartedAt = &started
	entry.record = &running
	entry.mu.Unlock()

	record, err := m.runner.Run(ctx, spec)
	if err != nil {
		// The runner only returns an error for persistence failures;
		// the record it returns still reflects the job's real outcome.
		record.Error = appendErr(record.Error, err)
	}

	entry.mu.Lock()
	entry.record = record
	entry.done = true
	entry.mu.Unlock()

	// The runner already persisted record to disk; the in-memory copy
	// is retained only to serve fast Get/List calls until eviction.
	m.evictOldestTerminal()

	if m.onComplete != nil {
		m.onComplete(record)
	}
}

func appendErr(existing string, err error) string {
	if existing == "" {
		return err.Error()
	}
	return existing + "; " + err.Error()
}

// evictOldestTerminal drops the oldest terminal (done) entries once
// more than maxCompletedInMemory are retained (§4.3). Entries still
// running are never evicted.
func (m *Manager) evictOldestTerminal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	terminalCount := 0
	for _, id := range m.order {
		if entry, ok := m.entries[id]; ok && entry.isDone() {
			terminalCount++
		}
	}

	kept := make([]string, 0, len(m.order))
	for _, id := range m.order {
		entry, ok := m.entries[id]
		if !ok {
			continue
		}
		if entry.isDone() && terminalCount > maxCompletedInMemory {
			delete(m.entries, id)
			terminalCount--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// Get returns a snapshot of job_id's record: from memory if still
// tracked, else from disk via the Run Store (§4.3).
func (m *Manager) Get(jobID string) (*orcaops.RunRecord, error) {
	m.mu.Lock()
	entry, ok := m.entries[jobID]
	m.mu.Unlock()
	if ok {
		return entry.snapshot(), nil
	}
	return m.store.Get(jobID)
}

// List returns a snapshot of every in-memory entry's record. Merging
// with historical Run Store data is the caller's responsibility (§4.3).
func (m *Manager) List() []*orcaops.RunRecord {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	out := make([]*orcaops.RunRecord, 0, len(ids))
	for _, id := range ids {
		m.mu.Lock()
		entry, ok := m.entries[id]
		m.mu.Unlock()
		if ok {
			out = append(out, entry.snapshot())
		}
	}
	return out
}

// Cancel sets job_id's cancel signal and reports whether the job was
// found (§4.3). The job transitions to cancelled asynchronously, either
// immediately (if still queued) or once the runner observes the signal
// between steps / mid stream-read.
func (m *Manager) Cancel(jobID string) (bool, *orcaops.RunRecord, error) {
	m.mu.Lock()
	entry, ok := m.entries[jobID]
	m.mu.Unlock()
	if !ok {
		record, err := m.store.Get(jobID)
		return false, record, err
	}

	entry.mu.Lock()
	cancel := entry.cancel
	entry.mu.Unlock()
	cancel()

	return true, entry.snapshot(), nil
}

// Shutdown cancels every tracked job and waits up to timeout for all
// worker goroutines to finish (§4.3).
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.Lock()
	for _, entry := range m.entries {
		entry.mu.Lock()
		cancel := entry.cancel
		entry.mu.Unlock()
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: workers still running after %s", orcaops.ErrTimeout, timeout)
	}
}
