package orcaops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	spec := &JobSpec{
		JobID:   "j1",
		Sandbox: SandboxSpec{Image: "python:3.11", Env: map[string]string{"A": "1", "B": "2"}},
		Commands: []Command{
			{Command: "pytest"},
		},
		Artifacts: []string{"out.xml"},
	}

	f1 := spec.Fingerprint()
	f2 := spec.Fingerprint()
	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64)

	// Env key order must not affect the fingerprint.
	reordered := *spec
	reordered.Sandbox.Env = map[string]string{"B": "2", "A": "1"}
	assert.Equal(t, f1, reordered.Fingerprint())

	changed := *spec
	changed.Commands = []Command{{Command: "pytest -x"}}
	assert.NotEqual(t, f1, changed.Fingerprint())
}

func TestBaselineKey(t *testing.T) {
	key := BaselineKey("python:3.11", []string{"pytest", "-x"})
	assert.Equal(t, "python:3.11::pytest|-x", key)
}
