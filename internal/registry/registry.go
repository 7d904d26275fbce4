// Package registry implements the Sandbox Registry (SPEC_FULL §2
// supplement): a small collection of named, reusable sandbox templates so
// callers can submit {template: "python-test"} instead of repeating
// image/env/commands boilerplate. Grounded on
// original_source/sandbox_registry.py's register/get/list persistence
// idiom, adapted from tracking generated project directories to tracking
// reusable job templates.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Template is a named, reusable shape for a JobSpec's sandbox, commands,
// and artifact patterns.
type Template struct {
	Name      string             `json:"name"`
	Sandbox   orcaops.SandboxSpec `json:"sandbox"`
	Commands  []orcaops.Command  `json:"commands"`
	Artifacts []string           `json:"artifacts,omitempty"`
}

// Registry persists templates as one JSON file per name under
// root/templates/<name>.json.
type Registry struct {
	mu   sync.RWMutex
	root string
}

// New returns a Registry rooted at root/templates.
func New(root string) *Registry {
	return &Registry{root: filepath.Join(root, "templates")}
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.root, name+".json")
}

// Register writes (or overwrites) a named template.
func (r *Registry) Register(t Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return orcaops.WriteFileAtomic(r.path(t.Name), data, 0o644)
}

// Get loads a template by name.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path(name))
	if os.IsNotExist(err) {
		return nil, orcaops.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: template %s: %v", orcaops.ErrCorruptRecord, name, err)
	}
	return &t, nil
}

// Unregister removes a named template.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(name)); err != nil {
		if os.IsNotExist(err) {
			return orcaops.ErrNotFound
		}
		return err
	}
	return nil
}

// List returns every registered template, skipping malformed files.
func (r *Registry) List() ([]*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var out []*Template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.root, entry.Name()))
		if err != nil {
			continue
		}
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// Expand applies a registered template to spec in place: it fills
// Sandbox, Commands, and Artifacts from the template whenever spec
// leaves them at their zero value, then clears spec.Template. A spec
// without a Template field is returned unchanged (§SPEC_FULL 2).
func (r *Registry) Expand(spec *orcaops.JobSpec) error {
	if spec.Template == "" {
		return nil
	}

	t, err := r.Get(spec.Template)
	if err != nil {
		return fmt.Errorf("expand template %s: %w", spec.Template, err)
	}

	if spec.Sandbox.Image == "" {
		spec.Sandbox = t.Sandbox
	}
	if len(spec.Commands) == 0 {
		spec.Commands = t.Commands
	}
	if len(spec.Artifacts) == 0 {
		spec.Artifacts = t.Artifacts
	}
	spec.Template = ""
	return nil
}
