// Package servicemgr implements the Service Manager (§4.6): it brings
// up a workflow's service dependencies (databases, brokers, caches) on
// a dedicated network before the jobs that need them run, and tears
// them back down afterward. Grounded on the teacher's cmd/sett/commands
// up.go, which follows the same network-then-containers sequence
// against the Docker API directly; here the sequence is expressed
// against the runtimeadapter.Adapter capability surface instead.
package servicemgr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/orcaops/orcaops/internal/runtimeadapter"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// wellKnownPorts maps a service image's repository name to its default
// port, expressed as a nat.Port so the numeric value is validated the
// same way the Docker API itself would parse it (§4.6).
var wellKnownPorts = map[string]nat.Port{
	"postgres":      mustPort("5432"),
	"redis":         mustPort("6379"),
	"mysql":         mustPort("3306"),
	"mongo":         mustPort("27017"),
	"rabbitmq":      mustPort("5672"),
	"elasticsearch": mustPort("9200"),
	"memcached":     mustPort("11211"),
	"nginx":         mustPort("80"),
}

func mustPort(p string) nat.Port {
	port, err := nat.NewPort("tcp", p)
	if err != nil {
		panic(err)
	}
	return port
}

const defaultHealthPollInterval = 1 * time.Second

// Manager starts and tears down a workflow's service containers (§4.6).
type Manager struct {
	adapter runtimeadapter.Adapter
}

// New constructs a Manager backed by adapter.
func New(adapter runtimeadapter.Adapter) *Manager {
	return &Manager{adapter: adapter}
}

// Started describes the services a successful StartServices call
// brought up, so WorkflowRunner can tear them down later and wire the
// returned env vars into dependent jobs.
type Started struct {
	NetworkName  string
	ContainerIDs map[string]string // service name -> container id
	EnvVars      map[string]string // e.g. POSTGRES_HOST, POSTGRES_PORT
}

// StartServices implements the §4.6 contract: create a dedicated
// network, start each service container on it with DNS aliases, wait
// for any declared health checks, and tear everything down started so
// far if any step fails.
func (m *Manager) StartServices(ctx context.Context, services map[string]orcaops.ServiceDefinition, workflowID string) (*Started, error) {
	result := &Started{
		NetworkName:  runtimeadapter.WorkflowNetworkName(workflowID),
		ContainerIDs: make(map[string]string, len(services)),
		EnvVars:      make(map[string]string),
	}
	if len(services) == 0 {
		return result, nil
	}

	networkID, err := m.adapter.CreateNetwork(ctx, result.NetworkName, map[string]string{
		runtimeadapter.LabelWorkflowID: workflowID,
	})
	if err != nil {
		return nil, fmt.Errorf("create network %s: %w", result.NetworkName, err)
	}
	_ = networkID

	for name, def := range services {
		if err := m.startOne(ctx, workflowID, name, def, result); err != nil {
			m.teardown(context.Background(), result)
			return nil, fmt.Errorf("start service %s: %w", name, err)
		}
	}

	for name, def := range services {
		if def.HealthCheck == nil {
			continue
		}
		containerID := result.ContainerIDs[name]
		if err := m.waitHealthy(ctx, containerID, *def.HealthCheck); err != nil {
			m.teardown(context.Background(), result)
			return nil, fmt.Errorf("health check for service %s: %w", name, err)
		}
	}

	return result, nil
}

func (m *Manager) startOne(ctx context.Context, workflowID, name string, def orcaops.ServiceDefinition, result *Started) error {
	containerName := runtimeadapter.ServiceContainerName(workflowID, name)

	env := make([]string, 0, len(def.Env))
	for k, v := range def.Env {
		env = append(env, k+"="+v)
	}

	labels := map[string]string{
		runtimeadapter.LabelWorkflowID: workflowID,
		runtimeadapter.LabelService:    name,
	}

	containerID, err := m.adapter.Run(ctx, def.Image, runtimeadapter.RunOptions{
		Detach:      true,
		Env:         env,
		Labels:      labels,
		NetworkName: result.NetworkName,
		Name:        containerName,
	})
	if err != nil {
		return err
	}
	result.ContainerIDs[name] = containerID

	aliases := []string{name, containerName}
	if err := m.adapter.ConnectToNetwork(ctx, containerID, result.NetworkName, aliases); err != nil {
		return err
	}

	envPrefix := envName(name)
	result.EnvVars[envPrefix+"_HOST"] = name
	if port, ok := wellKnownPorts[serviceImageRepo(def.Image)]; ok {
		result.EnvVars[envPrefix+"_PORT"] = port.Port()
	}
	return nil
}

// envName upper-cases a service name and replaces '-' with '_' so it
// can prefix an environment variable (§4.6).
func envName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// serviceImageRepo strips the tag and registry path from an image
// reference, leaving just the repository name used to key the
// well-known port table, e.g. "docker.io/library/postgres:15" -> "postgres".
func serviceImageRepo(image string) string {
	repo := image
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	if i := strings.Index(repo, ":"); i >= 0 {
		repo = repo[:i]
	}
	if i := strings.Index(repo, "@"); i >= 0 {
		repo = repo[:i]
	}
	return repo
}

func (m *Manager) waitHealthy(ctx context.Context, containerID string, hc orcaops.HealthCheckSpec) error {
	timeout, err := parseDuration(hc.Timeout, 30*time.Second)
	if err != nil {
		return fmt.Errorf("health_check.timeout: %w", err)
	}
	interval, err := parseDuration(hc.Interval, defaultHealthPollInterval)
	if err != nil {
		return fmt.Errorf("health_check.interval: %w", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := m.adapter.InspectContainer(ctx, containerID)
		if err == nil && isHealthy(info) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: service did not become healthy within %s", orcaops.ErrTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isHealthy(info runtimeadapter.ContainerInfo) bool {
	if info.Health == "healthy" {
		return true
	}
	return (info.Health == "" || info.Health == "none") && info.State == "running"
}

// parseDuration accepts the §4.6 suffixes Ns/Nms/Nm plus a bare number
// (interpreted as seconds); an empty string returns def.
func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	switch {
	case strings.HasSuffix(raw, "ms"):
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "ms"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Millisecond, nil
	case strings.HasSuffix(raw, "s"):
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "s"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Second, nil
	case strings.HasSuffix(raw, "m"):
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "m"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * time.Minute, nil
	default:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n) * time.Second, nil
	}
}

// Teardown removes every container StartServices brought up and the
// dedicated network, logging nothing itself (callers decide how loudly
// to report teardown failures — §4.6 step 4 only requires that
// whatever was started gets torn down).
func (m *Manager) Teardown(ctx context.Context, started *Started) {
	m.teardown(ctx, started)
}

func (m *Manager) teardown(ctx context.Context, started *Started) {
	if started == nil {
		return
	}
	for _, containerID := range started.ContainerIDs {
		_ = m.adapter.Remove(ctx, containerID, true)
	}
	if started.NetworkName != "" {
		_ = m.adapter.RemoveNetwork(ctx, started.NetworkName)
	}
}
