package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/internal/jobmanager"
	"github.com/orcaops/orcaops/internal/jobrunner"
	"github.com/orcaops/orcaops/internal/servicemgr"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

func newTestManager(t *testing.T, adapter *fakeAdapter) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	jr := jobrunner.New(adapter, root)
	jm := jobmanager.New(jr, root)
	sm := servicemgr.New(adapter)
	runner := New(jm, sm)
	return NewManager(runner, root), root
}

func simpleSpec() *orcaops.WorkflowSpec {
	return &orcaops.WorkflowSpec{
		Name: "simple",
		Jobs: map[string]*orcaops.WorkflowJob{
			"build": {Image: "golang:1.24", Commands: []orcaops.Command{{Command: "go build ./...", TimeoutSeconds: 10}}, Timeout: 10},
		},
	}
}

func TestManager_SubmitReturnsPendingSnapshot(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	record, err := mgr.Submit(simpleSpec(), "wf-a", "manual")
	require.NoError(t, err)
	assert.Equal(t, orcaops.WorkflowStatusPending, record.Status)

	require.NoError(t, mgr.Shutdown(5*time.Second))
}

func TestManager_DuplicateWorkflowIDRejected(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	_, err := mgr.Submit(simpleSpec(), "wf-b", "manual")
	require.NoError(t, err)

	_, err = mgr.Submit(simpleSpec(), "wf-b", "manual")
	assert.ErrorIs(t, err, orcaops.ErrConflict)

	require.NoError(t, mgr.Shutdown(5*time.Second))
}

func TestManager_InvalidSpecRejected(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	_, err := mgr.Submit(&orcaops.WorkflowSpec{Name: "bad"}, "wf-c", "manual")
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}

func TestManager_RunCompletesAndPersists(t *testing.T) {
	mgr, root := newTestManager(t, &fakeAdapter{})

	_, err := mgr.Submit(simpleSpec(), "wf-d", "manual")
	require.NoError(t, err)

	record := waitForTerminal(t, mgr, "wf-d")
	assert.Equal(t, orcaops.WorkflowStatusSuccess, record.Status)

	// The worker persists after publishing the terminal record; Shutdown
	// waits for the worker to return.
	require.NoError(t, mgr.Shutdown(5*time.Second))
	assert.FileExists(t, root+"/workflows/wf-d/workflow.json")
}

// waitForTerminal polls Get until workflowID reaches a terminal status,
// avoiding a race with Shutdown's own cancel-everything semantics.
func waitForTerminal(t *testing.T, mgr *Manager, workflowID string) *orcaops.WorkflowRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := mgr.Get(workflowID)
		require.NoError(t, err)
		if record.Status != orcaops.WorkflowStatusPending && record.Status != orcaops.WorkflowStatusRunning {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("workflow %q did not reach a terminal status in time", workflowID)
	return nil
}

func TestManager_GetUnknownWorkflowFallsBackToDisk(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	_, err := mgr.Get("ghost")
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestManager_CancelUnknownWorkflowFails(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	ok, err := mgr.Cancel("ghost")
	assert.False(t, ok)
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestManager_ListReturnsTrackedEntries(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAdapter{})

	_, err := mgr.Submit(simpleSpec(), "wf-e", "manual")
	require.NoError(t, err)

	spec2 := simpleSpec()
	spec2.Name = "simple2"
	_, err = mgr.Submit(spec2, "wf-f", "manual")
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(5*time.Second))

	records := mgr.List()
	assert.Len(t, records, 2)
}
