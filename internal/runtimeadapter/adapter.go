// Package runtimeadapter is the thin capability surface the rest of the
// system uses to drive a container runtime (§4.1). Its only
// implementation today wraps the Docker Engine API, but callers program
// against the Adapter interface so that surface never leaks into the
// Job Runner, Service Manager, or Workflow Runner.
package runtimeadapter

import (
	"context"
	"io"
	"time"
)

// RunOptions configures a new sandbox or service container (§4.1).
type RunOptions struct {
	Detach        bool
	Command       []string
	Env           []string
	Labels        map[string]string
	NetworkName   string
	Name          string
	ResourceLimits ResourceLimits
}

// ResourceLimits mirrors the free-form sandbox.resources field once
// resolved to concrete container limits.
type ResourceLimits struct {
	MemoryBytes int64
	NanoCPUs    int64
}

// ExecHandle identifies a running exec session inside a container (§4.1).
type ExecHandle string

// ExecStreams carries demultiplexed stdout/stderr for an exec session.
type ExecStreams struct {
	Handle ExecHandle
	Stdout io.Reader
	Stderr io.Reader
}

// LogOptions configures Logs (§4.1).
type LogOptions struct {
	Follow     bool
	Timestamps bool
	Tail       string
}

// ContainerInfo is the subset of container inspect state this system needs (§4.1).
type ContainerInfo struct {
	ImageDigest    string
	EnvList        []string
	ResourceLimits ResourceLimits
	State          string
	Health         string // "", "healthy", "unhealthy", "starting", "none"
}

// ContainerStats is a single resource-usage snapshot (§4.1, §4.2 step 6).
type ContainerStats struct {
	CPUUsageNanos    uint64
	MemoryMaxBytes   uint64
	NetRxBytes       uint64
	NetTxBytes       uint64
	BlkioReadBytes   uint64
	BlkioWriteBytes  uint64
}

// Adapter is the capability surface consumed by the rest of OrcaOps.
// Implementations must collapse every runtime-specific failure onto the
// three conditions named in §4.1: not_found, api_error (transient), and
// image_not_found.
type Adapter interface {
	Run(ctx context.Context, image string, opts RunOptions) (containerID string, err error)
	Exec(ctx context.Context, containerID string, argv []string, cwd string) (*ExecStreams, error)
	Inspect(ctx context.Context, handle ExecHandle) (exitCode int, running bool, err error)
	Logs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error)
	Stop(ctx context.Context, containerID string, timeout time.Duration) error
	Remove(ctx context.Context, containerID string, force bool) error
	CopyFrom(ctx context.Context, containerID, srcPath, destDir string) error
	Stats(ctx context.Context, containerID string) (ContainerStats, error)
	InspectContainer(ctx context.Context, containerID string) (ContainerInfo, error)

	CreateNetwork(ctx context.Context, name string, labels map[string]string) (networkID string, err error)
	ConnectToNetwork(ctx context.Context, containerID, networkID string, aliases []string) error
	RemoveNetwork(ctx context.Context, name string) error

	// ImageDigest resolves an image reference to its first repo digest,
	// falling back to the local image ID when the image has no registry
	// digest (e.g. a local build). Used for environment capture (§4.2
	// step 5) and worker image audit trails.
	ImageDigest(ctx context.Context, imageRef string) (string, error)
}
