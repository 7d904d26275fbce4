package runtimeadapter

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerAdapter implements Adapter against a real Docker Engine.
type DockerAdapter struct {
	cli *client.Client
}

// NewDockerAdapter creates a Docker-backed adapter and validates daemon
// accessibility, mirroring the teacher's docker.NewClient contract.
func NewDockerAdapter(ctx context.Context) (*DockerAdapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return &DockerAdapter{cli: cli}, nil
}

func (d *DockerAdapter) Run(ctx context.Context, image string, opts RunOptions) (string, error) {
	cfg := &container.Config{
		Image:  image,
		Cmd:    opts.Command,
		Env:    opts.Env,
		Labels: opts.Labels,
	}

	hostCfg := &container.HostConfig{}
	if opts.NetworkName != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.NetworkName)
	}
	if opts.ResourceLimits.MemoryBytes > 0 || opts.ResourceLimits.NanoCPUs > 0 {
		hostCfg.Resources = container.Resources{
			Memory:   opts.ResourceLimits.MemoryBytes,
			NanoCPUs: opts.ResourceLimits.NanoCPUs,
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return "", classify("ContainerCreate", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		d.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return "", classify("ContainerStart", err)
	}

	return resp.ID, nil
}

func (d *DockerAdapter) Exec(ctx context.Context, containerID string, argv []string, cwd string) (*ExecStreams, error) {
	execCfg := types.ExecConfig{
		Cmd:          argv,
		WorkingDir:   cwd,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := d.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, classify("ContainerExecCreate", err)
	}

	attached, err := d.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, classify("ContainerExecAttach", err)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	go func() {
		defer attached.Close()
		defer stdoutW.Close()
		defer stderrW.Close()
		_, _ = stdcopy.StdCopy(stdoutW, stderrW, attached.Reader)
	}()

	return &ExecStreams{Handle: ExecHandle(created.ID), Stdout: stdoutR, Stderr: stderrR}, nil
}

func (d *DockerAdapter) Inspect(ctx context.Context, handle ExecHandle) (int, bool, error) {
	resp, err := d.cli.ContainerExecInspect(ctx, string(handle))
	if err != nil {
		return 0, false, classify("ContainerExecInspect", err)
	}
	return resp.ExitCode, resp.Running, nil
}

func (d *DockerAdapter) Logs(ctx context.Context, containerID string, opts LogOptions) (io.ReadCloser, error) {
	out, err := d.cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Timestamps: opts.Timestamps,
		Tail:       opts.Tail,
	})
	if err != nil {
		return nil, classify("ContainerLogs", err)
	}
	return out, nil
}

func (d *DockerAdapter) Stop(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := d.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds}); err != nil {
		return classify("ContainerStop", err)
	}
	return nil
}

func (d *DockerAdapter) Remove(ctx context.Context, containerID string, force bool) error {
	if err := d.cli.ContainerRemove(ctx, containerID, types.ContainerRemoveOptions{Force: force}); err != nil {
		return classify("ContainerRemove", err)
	}
	return nil
}

// CopyFrom streams a tar archive for srcPath out of the container and
// extracts it into destDir. Only regular files are extracted; symlinks
// and directories inside the archive are skipped.
func (d *DockerAdapter) CopyFrom(ctx context.Context, containerID, srcPath, destDir string) error {
	reader, _, err := d.cli.CopyFromContainer(ctx, containerID, srcPath)
	if err != nil {
		return classify("CopyFromContainer", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create artifact dest dir %s: %w", destDir, err)
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read artifact tar stream: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		destPath := filepath.Join(destDir, name)

		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("create artifact file %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("write artifact file %s: %w", destPath, err)
		}
		f.Close()
	}
}

func (d *DockerAdapter) Stats(ctx context.Context, containerID string) (ContainerStats, error) {
	resp, err := d.cli.ContainerStats(ctx, containerID, false)
	if err != nil {
		return ContainerStats{}, classify("ContainerStats", err)
	}
	defer resp.Body.Close()

	var raw types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ContainerStats{}, fmt.Errorf("decode stats for %s: %w", containerID, err)
	}

	var rx, tx uint64
	for _, iface := range raw.Networks {
		rx += iface.RxBytes
		tx += iface.TxBytes
	}

	var blkRead, blkWrite uint64
	for _, entry := range raw.BlkioStats.IoServiceBytesRecursive {
		switch entry.Op {
		case "Read":
			blkRead += entry.Value
		case "Write":
			blkWrite += entry.Value
		}
	}

	return ContainerStats{
		CPUUsageNanos:   raw.CPUStats.CPUUsage.TotalUsage,
		MemoryMaxBytes:  raw.MemoryStats.MaxUsage,
		NetRxBytes:      rx,
		NetTxBytes:      tx,
		BlkioReadBytes:  blkRead,
		BlkioWriteBytes: blkWrite,
	}, nil
}

func (d *DockerAdapter) InspectContainer(ctx context.Context, containerID string) (ContainerInfo, error) {
	info, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return ContainerInfo{}, classify("ContainerInspect", err)
	}

	var digest string
	if len(info.Image) > 0 {
		digest = info.Image
	}

	var health string
	if info.State != nil && info.State.Health != nil {
		health = info.State.Health.Status
	}

	var state string
	if info.State != nil {
		state = info.State.Status
	}

	var envList []string
	if info.Config != nil {
		envList = info.Config.Env
	}

	limits := ResourceLimits{}
	limits.MemoryBytes = info.HostConfig.Memory
	limits.NanoCPUs = info.HostConfig.NanoCPUs

	return ContainerInfo{
		ImageDigest:    digest,
		EnvList:        envList,
		ResourceLimits: limits,
		State:          state,
		Health:         health,
	}, nil
}

func (d *DockerAdapter) CreateNetwork(ctx context.Context, name string, labels map[string]string) (string, error) {
	resp, err := d.cli.NetworkCreate(ctx, name, types.NetworkCreate{
		Driver: "bridge",
		Labels: labels,
	})
	if err != nil {
		return "", classify("NetworkCreate", err)
	}
	return resp.ID, nil
}

func (d *DockerAdapter) ConnectToNetwork(ctx context.Context, containerID, networkID string, aliases []string) error {
	err := d.cli.NetworkConnect(ctx, networkID, containerID, &network.EndpointSettings{
		Aliases: aliases,
	})
	if err != nil {
		return classify("NetworkConnect", err)
	}
	return nil
}

func (d *DockerAdapter) RemoveNetwork(ctx context.Context, name string) error {
	if err := d.cli.NetworkRemove(ctx, name); err != nil {
		return classify("NetworkRemove", err)
	}
	return nil
}

func (d *DockerAdapter) ImageDigest(ctx context.Context, imageRef string) (string, error) {
	info, _, err := d.cli.ImageInspectWithRaw(ctx, imageRef)
	if err != nil {
		return "", classify("ImageInspectWithRaw", err)
	}

	if len(info.RepoDigests) > 0 {
		return info.RepoDigests[0], nil
	}
	if info.ID != "" {
		return info.ID, nil
	}
	return "", fmt.Errorf("image %s has no digest or ID", imageRef)
}
