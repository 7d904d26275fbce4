package rootconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "orcaops.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.Equal(t, defaultRoot, cfg.Root)
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: \"1.0\"\nroot: /tmp/data\nmax_parallel: 8\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/data", cfg.Root)
	assert.Equal(t, 8, cfg.MaxParallel)
}

func TestLoad_RejectsBadVersion(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: \"2.0\"\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}

func TestValidate_RejectsTTLOutOfRange(t *testing.T) {
	cfg := &Config{DefaultTTL: 1}
	err := cfg.Validate()
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}

func TestValidate_RejectsNegativeMaxParallel(t *testing.T) {
	cfg := &Config{MaxParallel: -1}
	err := cfg.Validate()
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}
