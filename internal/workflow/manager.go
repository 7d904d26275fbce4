package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// maxCompletedWorkflowsInMemory bounds how many terminal workflow
// entries are retained before the oldest are evicted, mirroring
// jobmanager's eviction bound (§4.3, applied here to workflows).
const maxCompletedWorkflowsInMemory = 100

// Entry tracks one running or completed workflow's in-memory state.
type Entry struct {
	mu     sync.Mutex
	record *orcaops.WorkflowRecord
	cancel context.CancelFunc
	done   bool
}

func (e *Entry) snapshot() *orcaops.WorkflowRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.record
	cp.JobStatuses = make(map[string]*orcaops.WorkflowJobStatus, len(e.record.JobStatuses))
	for k, v := range e.record.JobStatuses {
		st := *v
		cp.JobStatuses[k] = &st
	}
	return &cp
}

func (e *Entry) isDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Manager owns the in-memory workflow map and dispatches a worker
// goroutine per submission that drives a Runner, persisting the final
// record under root/workflows/<workflow_id>/workflow.json (§6). Built
// on the same manager-lock / per-entry-lock split as jobmanager.Manager.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	runner  *Runner
	root    string
	wg      sync.WaitGroup
}

// NewManager returns a Manager that drives workflows through runner and
// persists records under root.
func NewManager(runner *Runner, root string) *Manager {
	return &Manager{entries: make(map[string]*Entry), runner: runner, root: root}
}

// Submit validates spec, allocates an entry for workflowID, and starts
// its worker goroutine. Duplicate workflow ids fail, mirroring the Job
// Manager's no-resubmission rule (§4.3, §9).
func (m *Manager) Submit(spec *orcaops.WorkflowSpec, workflowID, triggeredBy string) (*orcaops.WorkflowRecord, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.entries[workflowID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: workflow_id %q already submitted", orcaops.ErrConflict, workflowID)
	}

	now := time.Now().UTC()
	record := &orcaops.WorkflowRecord{
		WorkflowID:  workflowID,
		SpecName:    spec.Name,
		Status:      orcaops.WorkflowStatusPending,
		CreatedAt:   now,
		JobStatuses: make(map[string]*orcaops.WorkflowJobStatus),
		Env:         spec.Env,
		TriggeredBy: triggeredBy,
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &Entry{record: record, cancel: cancel}
	m.entries[workflowID] = entry
	m.order = append(m.order, workflowID)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runWorker(ctx, entry, spec, workflowID, triggeredBy)

	return entry.snapshot(), nil
}

func (m *Manager) runWorker(ctx context.Context, entry *Entry, spec *orcaops.WorkflowSpec, workflowID, triggeredBy string) {
	defer m.wg.Done()

	record := m.runner.Run(ctx, spec, workflowID, triggeredBy)

	entry.mu.Lock()
	entry.record = record
	entry.done = true
	entry.mu.Unlock()

	if err := m.persist(record); err != nil {
		entry.mu.Lock()
		entry.record.Error = appendErr(entry.record.Error, err)
		entry.mu.Unlock()
	}

	m.evictOldestTerminal()
}

func appendErr(existing string, err error) string {
	if existing == "" {
		return err.Error()
	}
	return existing + "; " + err.Error()
}

func (m *Manager) persist(record *orcaops.WorkflowRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal workflow record: %v", orcaops.ErrPersistenceFailed, err)
	}
	path := filepath.Join(m.root, "workflows", record.WorkflowID, "workflow.json")
	if err := orcaops.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", orcaops.ErrPersistenceFailed, err)
	}
	return nil
}

// evictOldestTerminal drops the oldest terminal workflow entries once
// more than maxCompletedWorkflowsInMemory are retained.
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
		if entry.isDone() && terminalCount > maxCompletedWorkflowsInMemory {
			delete(m.entries, id)
			terminalCount--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// Get returns a snapshot of workflowID's record: from memory if still
// tracked, else loaded from disk.
func (m *Manager) Get(workflowID string) (*orcaops.WorkflowRecord, error) {
	m.mu.Lock()
	entry, ok := m.entries[workflowID]
	m.mu.Unlock()
	if ok {
		return entry.snapshot(), nil
	}
	return m.load(workflowID)
}

func (m *Manager) load(workflowID string) (*orcaops.WorkflowRecord, error) {
	path := filepath.Join(m.root, "workflows", workflowID, "workflow.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: workflow %q", orcaops.ErrNotFound, workflowID)
	}
	var record orcaops.WorkflowRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", orcaops.ErrCorruptRecord, err)
	}
	return &record, nil
}

// List returns a snapshot of every in-memory workflow entry.
func (m *Manager) List() []*orcaops.WorkflowRecord {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	out := make([]*orcaops.WorkflowRecord, 0, len(ids))
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

// Cancel sets workflowID's cancel signal; running tasks cancel their
// jobs at their next poll, and the worker marks still-queued jobs
// cancelled at the start of the next level (§4.5 step 1).
func (m *Manager) Cancel(workflowID string) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[workflowID]
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: workflow %q", orcaops.ErrNotFound, workflowID)
	}

	entry.mu.Lock()
	cancel := entry.cancel
	entry.mu.Unlock()
	cancel()

	return true, nil
}

// Shutdown cancels every tracked workflow and waits up to timeout for
// all worker goroutines to finish.
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
		return fmt.Errorf("%w: workflow workers still running after %s", orcaops.ErrTimeout, timeout)
	}
}
