package jobmanager

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/internal/jobrunner"
	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// slowAdapter is a minimal runtimeadapter.Adapter whose Exec call blocks
// until ctx is cancelled, letting tests exercise Cancel mid-run.
type slowAdapter struct{}

func (slowAdapter) Run(ctx context.Context, image string, opts runtimeadapter.RunOptions) (string, error) {
	return "container-1", nil
}

func (slowAdapter) Exec(ctx context.Context, containerID string, argv []string, cwd string) (*runtimeadapter.ExecStreams, error) {
	pr, pw := io.Pipe()
	go func() {
		<-ctx.Done()
		pw.Close()
	}()
	return &runtimeadapter.ExecStreams{Handle: "h1", Stdout: pr, Stderr: strings.NewReader("")}, nil
}

func (slowAdapter) Inspect(ctx context.Context, handle runtimeadapter.ExecHandle) (int, bool, error) {
	return 0, true, nil
}

func (slowAdapter) Logs(ctx context.Context, containerID string, opts runtimeadapter.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (slowAdapter) Stop(ctx context.Context, containerID string, timeout time.Duration) error {
	return nil
}

func (slowAdapter) Remove(ctx context.Context, containerID string, force bool) error { return nil }

func (slowAdapter) CopyFrom(ctx context.Context, containerID, srcPath, destDir string) error {
	return nil
}

func (slowAdapter) Stats(ctx context.Context, containerID string) (runtimeadapter.ContainerStats, error) {
	return runtimeadapter.ContainerStats{}, nil
}

func (slowAdapter) InspectContainer(ctx context.Context, containerID string) (runtimeadapter.ContainerInfo, error) {
	return runtimeadapter.ContainerInfo{}, nil
}

func (slowAdapter) CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	return "net-1", nil
}

func (slowAdapter) ConnectToNetwork(ctx context.Context, containerID, networkID string, aliases []string) error {
	return nil
}

func (slowAdapter) RemoveNetwork(ctx context.Context, name string) error { return nil }

func (slowAdapter) ImageDigest(ctx context.Context, imageRef string) (string, error) {
	return "sha256:abc", nil
}

var _ runtimeadapter.Adapter = slowAdapter{}

// quickAdapter completes every Exec immediately with exit code 0.
type quickAdapter struct{ slowAdapter }

func (quickAdapter) Exec(ctx context.Context, containerID string, argv []string, cwd string) (*runtimeadapter.ExecStreams, error) {
	return &runtimeadapter.ExecStreams{Handle: "h1", Stdout: strings.NewReader("ok"), Stderr: strings.NewReader("")}, nil
}

var _ runtimeadapter.Adapter = quickAdapter{}

func newTestSpec(jobID string) *orcaops.JobSpec {
	return &orcaops.JobSpec{
		JobID:      jobID,
		Sandbox:    orcaops.SandboxSpec{Image: "alpine"},
		Commands:   []orcaops.Command{{Command: "echo ok", TimeoutSeconds: 30}},
		TTLSeconds: 600,
	}
}

func TestSubmit_ReturnsQueuedSnapshot(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	record, err := mgr.Submit(newTestSpec("job-1"))
	require.NoError(t, err)
	assert.Equal(t, orcaops.JobStatusQueued, record.Status)

	mgr.Cancel("job-1")
	require.NoError(t, mgr.Shutdown(2*time.Second))
}

func TestSubmit_DuplicateJobIDFails(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	_, err := mgr.Submit(newTestSpec("dup"))
	require.NoError(t, err)
	_, err = mgr.Submit(newTestSpec("dup"))
	assert.ErrorIs(t, err, orcaops.ErrConflict)

	mgr.Cancel("dup")
	require.NoError(t, mgr.Shutdown(2*time.Second))
}

func TestSubmit_InvalidSpecRejected(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	spec := newTestSpec("bad")
	spec.Sandbox.Image = ""
	_, err := mgr.Submit(spec)
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}

func TestRun_CompletesSuccessfully(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(quickAdapter{}, root)
	mgr := New(runner, root)

	_, err := mgr.Submit(newTestSpec("job-done"))
	require.NoError(t, err)
	// Shutdown cancels every tracked job, so wait for the job to finish
	// on its own first.
	require.Eventually(t, func() bool {
		r, err := mgr.Get("job-done")
		return err == nil && r.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, mgr.Shutdown(2*time.Second))

	record, err := mgr.Get("job-done")
	require.NoError(t, err)
	assert.Equal(t, orcaops.JobStatusSuccess, record.Status)
}

func TestCancel_QueuedJobNeverRuns(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	_, err := mgr.Submit(newTestSpec("job-cancel"))
	require.NoError(t, err)

	ok, _, err := mgr.Cancel("job-cancel")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mgr.Shutdown(2*time.Second))
}

func TestCancel_UnknownJobFallsBackToStore(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	ok, _, err := mgr.Cancel("missing")
	assert.False(t, ok)
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestList_ReturnsTrackedEntries(t *testing.T) {
	root := t.TempDir()
	runner := jobrunner.New(slowAdapter{}, root)
	mgr := New(runner, root)

	_, err := mgr.Submit(newTestSpec("job-a"))
	require.NoError(t, err)
	_, err = mgr.Submit(newTestSpec("job-b"))
	require.NoError(t, err)

	records := mgr.List()
	assert.Len(t, records, 2)

	mgr.Cancel("job-a")
	mgr.Cancel("job-b")
	require.NoError(t, mgr.Shutdown(2*time.Second))
}
