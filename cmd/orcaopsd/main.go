// Command orcaopsd is the orcaops composition root: it wires the
// Runtime Adapter, Job Runner/Manager, Workflow Runner/Manager, Service
// Manager, and the analytics stack (Baseline Tracker, Anomaly Detector,
// Knowledge Base, Recommendation Engine) into one long-lived process,
// then waits for a shutdown signal. Grounded on
// cmd/orchestrator/main.go's env-driven bootstrap and
// graceful-degradation pattern: an unreachable Docker daemon aborts
// startup, while an unavailable Redis logs a warning and the daemon
// continues with the event bus disabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/orcaops/orcaops/internal/anomaly"
	"github.com/orcaops/orcaops/internal/audit"
	"github.com/orcaops/orcaops/internal/auth"
	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/internal/eventbus"
	"github.com/orcaops/orcaops/internal/jobmanager"
	"github.com/orcaops/orcaops/internal/jobrunner"
	"github.com/orcaops/orcaops/internal/knowledge"
	"github.com/orcaops/orcaops/internal/recommend"
	"github.com/orcaops/orcaops/internal/rootconfig"
	"github.com/orcaops/orcaops/internal/runstore"
	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/internal/servicemgr"
	"github.com/orcaops/orcaops/internal/workflow"
	"github.com/orcaops/orcaops/internal/workspace"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Daemon holds every long-lived component the composition root wires
// together. A thin CLI or HTTP translator (out of core scope, §1)
// would hold one of these and call straight into its fields.
type Daemon struct {
	Jobs       *jobmanager.Manager
	Workflows  *workflow.Manager
	Workspaces *workspace.Store
	Keys       *auth.KeyStore
	Sessions   *auth.SessionStore
	Audit      *audit.Log
	Baseline   *baseline.Tracker
	Anomalies  *anomaly.Store
	Knowledge  *knowledge.KnowledgeBase
	Recommend  *recommend.Engine

	bus *eventbus.Bus
}

func main() {
	ctx := context.Background()

	cfg, err := rootconfig.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid orcaops.yml: %v\n", err)
		os.Exit(1)
	}

	root := expandRoot(cfg.Root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create persistence root %s: %v\n", root, err)
		os.Exit(1)
	}

	daemon, cleanup, err := wire(ctx, cfg, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	fmt.Printf("orcaopsd ready: root=%s max_parallel=%d\n", root, cfg.MaxParallel)

	_, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh

	fmt.Println("shutting down, waiting for in-flight jobs and workflows...")
	if err := daemon.Jobs.Shutdown(30 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := daemon.Workflows.Shutdown(30 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cancel()
	fmt.Println("orcaopsd stopped")
}

func configPath() string {
	if p := os.Getenv("OCOPS_CONFIG"); p != "" {
		return p
	}
	return "orcaops.yml"
}

func expandRoot(root string) string {
	if root == "~/.orcaops" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".orcaops")
		}
	}
	return root
}

// wire constructs every component. Docker is required: an unreachable
// runtime adapter is returned as an error. Redis is optional: its
// absence only disables the best-effort event bus.
func wire(ctx context.Context, cfg *rootconfig.Config, root string) (*Daemon, func(), error) {
	adapter, err := runtimeadapter.NewDockerAdapter(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("runtime adapter unavailable (is Docker running?): %w", err)
	}

	jr := jobrunner.New(adapter, root)
	jm := jobmanager.New(jr, root)

	tracker, err := baseline.NewTracker(root)
	if err != nil {
		return nil, nil, fmt.Errorf("load baseline tracker: %w", err)
	}
	anomalyStore := anomaly.NewStore(root)
	kb := knowledge.NewKnowledgeBase(root)
	store := runstore.New(root)
	engine := recommend.NewEngine(store, tracker)

	var bus *eventbus.Bus
	if redisURL := firstNonEmpty(cfg.RedisURL, os.Getenv("OCOPS_REDIS_URL")); redisURL != "" {
		b, err := eventbus.Connect(ctx, redisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: event bus disabled: %v\n", err)
		} else {
			bus = b
			fmt.Println("event bus connected")
		}
	}

	jm.WithOnComplete(func(record *orcaops.RunRecord) {
		onJobComplete(ctx, tracker, anomalyStore, bus, record)
	})

	sm := servicemgr.New(adapter)
	wfRunner := workflow.New(jm, sm).WithMaxParallel(cfg.MaxParallel)
	wfManager := workflow.NewManager(wfRunner, root)

	wsStore := workspace.New(root)
	keys := auth.NewKeyStore(root)
	sessions := auth.NewSessionStore(root)
	auditLog := audit.New(root)

	if err := ensureDefaultWorkspace(wsStore, auditLog); err != nil {
		return nil, nil, fmt.Errorf("bootstrap default workspace: %w", err)
	}

	daemon := &Daemon{
		Jobs:       jm,
		Workflows:  wfManager,
		Workspaces: wsStore,
		Keys:       keys,
		Sessions:   sessions,
		Audit:      auditLog,
		Baseline:   tracker,
		Anomalies:  anomalyStore,
		Knowledge:  kb,
		Recommend:  engine,
		bus:        bus,
	}

	cleanup := func() {
		if bus != nil {
			bus.Close()
		}
	}
	return daemon, cleanup, nil
}

// onJobComplete is the Job Manager's completion hook: it snapshots the
// baseline before updating it, runs full anomaly detection against that
// snapshot, persists any anomalies found, updates the baseline for
// future runs, and (best-effort) publishes a job_events message.
func onJobComplete(ctx context.Context, tracker *baseline.Tracker, anomalyStore *anomaly.Store, bus *eventbus.Bus, record *orcaops.RunRecord) {
	before := tracker.Get(record.BaselineKey)
	if before != nil {
		for _, a := range anomaly.Detect(record, before) {
			if err := anomalyStore.Append(a); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to persist anomaly: %v\n", err)
			}
		}
	}

	if _, err := tracker.Update(record); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update baseline: %v\n", err)
	}

	if bus != nil {
		if err := bus.PublishJobEvent(ctx, eventbus.JobEvent{
			JobID: record.JobID, Status: string(record.Status), Fingerprint: record.Fingerprint, At: time.Now().UTC(),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to publish job event: %v\n", err)
		}
	}
}

// defaultWorkspaceName is the workspace every job runs under until
// multi-tenant callers provision their own (§3).
const defaultWorkspaceName = "default"

func ensureDefaultWorkspace(store *workspace.Store, auditLog *audit.Log) error {
	existing, err := store.List()
	if err != nil {
		return err
	}
	for _, ws := range existing {
		if ws.Name == defaultWorkspaceName {
			return nil
		}
	}

	ws, err := store.Create(defaultWorkspaceName, "system")
	if err != nil {
		return err
	}
	return auditLog.Record(orcaops.AuditEvent{
		Actor: "system", Action: "workspace.create", ResourceID: ws.ID, WorkspaceID: ws.ID,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
