// Package workspace implements the multi-tenant scoping boundary (§3,
// §6, SPEC_FULL §2): one JSON file per workspace under
// root/workspaces/<ws_id>/workspace.json. Grounded on registry.Registry's
// one-file-per-entity persistence idiom, adapted from named templates to
// workspaces addressed by generated id.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Store persists Workspace records as root/workspaces/<id>/workspace.json.
type Store struct {
	mu   sync.RWMutex
	root string
}

// New returns a Store rooted at root/workspaces.
func New(root string) *Store {
	return &Store{root: filepath.Join(root, "workspaces")}
}

func (s *Store) dir(id string) string  { return filepath.Join(s.root, id) }
func (s *Store) path(id string) string { return filepath.Join(s.dir(id), "workspace.json") }

// Create allocates a new workspace with a generated id and persists it.
func (s *Store) Create(name, owner string) (*orcaops.Workspace, error) {
	ws := &orcaops.Workspace{
		ID:        uuid.New().String(),
		Name:      name,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ws); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Store) write(ws *orcaops.Workspace) error {
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}
	return orcaops.WriteFileAtomic(s.path(ws.ID), data, 0o644)
}

// Get loads a workspace by id.
func (s *Store) Get(id string) (*orcaops.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: workspace %q", orcaops.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace %s: %w", id, err)
	}

	var ws orcaops.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: workspace %s: %v", orcaops.ErrCorruptRecord, id, err)
	}
	return &ws, nil
}

// List returns every workspace, skipping malformed entries.
func (s *Store) List() ([]*orcaops.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspaces dir: %w", err)
	}

	var out []*orcaops.Workspace
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name(), "workspace.json"))
		if err != nil {
			continue
		}
		var ws orcaops.Workspace
		if err := json.Unmarshal(data, &ws); err != nil {
			continue
		}
		out = append(out, &ws)
	}
	return out, nil
}

// Delete removes a workspace and everything nested under it (keys, in
// particular). Deleting a workspace does not touch jobs or workflows
// submitted under it; those remain addressable by id regardless of
// workspace lifecycle (§3 ownership note).
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.dir(id)); os.IsNotExist(err) {
		return fmt.Errorf("%w: workspace %q", orcaops.ErrNotFound, id)
	}
	return os.RemoveAll(s.dir(id))
}
