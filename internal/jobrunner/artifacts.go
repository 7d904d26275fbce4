package jobrunner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// collectArtifacts resolves each artifact entry inside the sandbox via
// `find '<entry>' -maxdepth 0 -print0`, copies every resolved path out
// with CopyFrom, and records its size and sha256 (§4.2 step 4). The
// entry is single-quoted, so the shell does not expand glob characters:
// each entry is treated as a literal path, and a pattern such as
// "/out/*.txt" matches only a file with that exact name.
// Collection failures are logged, not surfaced as job failures, and an
// entry matching zero paths is not an error.
func (r *Runner) collectArtifacts(ctx context.Context, record *orcaops.RunRecord, containerID, artifactsDir string, patterns []string) {
	for _, pattern := range patterns {
		paths, err := r.resolveGlob(ctx, containerID, pattern)
		if err != nil {
			logf(record.JobID, "WARN", "artifact glob %q failed: %v", pattern, err)
			continue
		}
		for _, path := range paths {
			meta, err := r.copyArtifact(ctx, containerID, artifactsDir, path)
			if err != nil {
				logf(record.JobID, "WARN", "artifact copy %q failed: %v", path, err)
				continue
			}
			record.Artifacts = append(record.Artifacts, meta)
		}
	}
}

// resolveGlob runs find inside the container and splits its NUL-delimited
// stdout into individual paths.
func (r *Runner) resolveGlob(ctx context.Context, containerID, pattern string) ([]string, error) {
	argv := []string{"/bin/sh", "-c", fmt.Sprintf("find %s -maxdepth 0 -print0", shellQuote(pattern))}
	streams, err := r.adapter.Exec(ctx, containerID, argv, "/")
	if err != nil {
		return nil, fmt.Errorf("exec find: %w", err)
	}

	stdout, _, _ := drainStreams(ctx, streams, 0)
	exitCode, _, err := r.adapter.Inspect(ctx, streams.Handle)
	if err != nil {
		return nil, fmt.Errorf("inspect find: %w", err)
	}
	if exitCode != 0 {
		// A zero-match glob still returns nonzero from some find
		// implementations; treat it as "no matches" rather than an error.
		return nil, nil
	}

	var paths []string
	for _, p := range bytes.Split(stdout, []byte{0}) {
		if len(p) == 0 {
			continue
		}
		paths = append(paths, string(p))
	}
	return paths, nil
}

// copyArtifact copies srcPath out of the sandbox into destDir and
// computes its metadata.
func (r *Runner) copyArtifact(ctx context.Context, containerID, destDir, srcPath string) (orcaops.ArtifactMetadata, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return orcaops.ArtifactMetadata{}, fmt.Errorf("create artifacts dir: %w", err)
	}
	if err := r.adapter.CopyFrom(ctx, containerID, srcPath, destDir); err != nil {
		return orcaops.ArtifactMetadata{}, fmt.Errorf("copy from sandbox: %w", err)
	}

	name := filepath.Base(srcPath)
	localPath := filepath.Join(destDir, name)

	meta := orcaops.ArtifactMetadata{
		Name:   name,
		Path:   name, // relative within the job's artifacts dir (§3)
		SHA256: orcaops.ArtifactHashUnavailable,
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return meta, nil
	}
	meta.SizeBytes = info.Size()

	f, err := os.Open(localPath)
	if err != nil {
		return meta, nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return meta, nil
	}
	meta.SHA256 = hex.EncodeToString(h.Sum(nil))
	return meta, nil
}

// shellQuote wraps s in single quotes for safe interpolation into a
// `/bin/sh -c` command line, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
