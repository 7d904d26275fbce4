package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orcaops/orcaops/internal/baseline"
	"github.com/orcaops/orcaops/internal/jobmanager"
	"github.com/orcaops/orcaops/internal/jobrunner"
	"github.com/orcaops/orcaops/internal/recommend"
	"github.com/orcaops/orcaops/internal/rootconfig"
	"github.com/orcaops/orcaops/internal/runstore"
	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/internal/servicemgr"
	"github.com/orcaops/orcaops/internal/workflow"
)

// components is the subset of orcaopsd's wired components a one-shot CLI
// invocation needs. Unlike orcaopsd, the CLI never starts an event bus or
// the workspace/auth/audit stack: it operates directly against the same
// persistence root, as a short-lived alternative front end (§1, §6 — no
// HTTP/RPC surface is in scope, so this is direct filesystem access rather
// than a client talking to a running daemon).
type components struct {
	Jobs      *jobmanager.Manager
	Workflows *workflow.Manager
	Store     *runstore.Store
	Tracker   *baseline.Tracker
	Recommend *recommend.Engine
	Root      string
}

// wire constructs components rooted at the configured persistence
// directory. Docker must be reachable; nothing here is optional, since
// every subcommand submits or inspects real container work.
func wire(ctx context.Context) (*components, error) {
	cfg, err := rootconfig.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("invalid orcaops.yml: %w", err)
	}
	root := expandRoot(cfg.Root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create persistence root %s: %w", root, err)
	}

	adapter, err := runtimeadapter.NewDockerAdapter(ctx)
	if err != nil {
		return nil, fmt.Errorf("runtime adapter unavailable (is Docker running?): %w", err)
	}

	jr := jobrunner.New(adapter, root)
	jm := jobmanager.New(jr, root)

	tracker, err := baseline.NewTracker(root)
	if err != nil {
		return nil, fmt.Errorf("load baseline tracker: %w", err)
	}
	store := runstore.New(root)
	engine := recommend.NewEngine(store, tracker)

	sm := servicemgr.New(adapter)
	wfRunner := workflow.New(jm, sm).WithMaxParallel(cfg.MaxParallel)
	wfManager := workflow.NewManager(wfRunner, root)

	return &components{
		Jobs:      jm,
		Workflows: wfManager,
		Store:     store,
		Tracker:   tracker,
		Recommend: engine,
		Root:      root,
	}, nil
}

func configPath() string {
	if p := os.Getenv("OCOPS_CONFIG"); p != "" {
		return p
	}
	return "orcaops.yml"
}

func expandRoot(root string) string {
	if root == "~/.orcaops" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".orcaops")
		}
	}
	return root
}
