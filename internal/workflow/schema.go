// Package workflow implements the Workflow Schema & Validation (§4.4),
// DAG level computation, matrix expansion, condition grammar, and the
// Workflow Runner (§4.5) that drives jobs through the Job Manager.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// rawWorkflowSpec mirrors orcaops.WorkflowSpec but keeps each job's
// services/matrix fields as raw YAML nodes so Parse can normalize the
// shorthand forms (§4.4) before producing the typed spec.
type rawWorkflowSpec struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Env         map[string]string  `yaml:"env,omitempty"`
	Timeout     int                `yaml:"timeout,omitempty"`
	Jobs        map[string]rawJob  `yaml:"jobs"`
}

type rawJob struct {
	Image       string            `yaml:"image"`
	Env         map[string]string `yaml:"env,omitempty"`
	Commands    []orcaops.Command `yaml:"commands"`
	Artifacts   []string          `yaml:"artifacts,omitempty"`
	Timeout     int               `yaml:"timeout,omitempty"`
	Requires    []string          `yaml:"requires,omitempty"`
	IfCondition string            `yaml:"if,omitempty"`
	OnComplete  orcaops.OnComplete `yaml:"on_complete,omitempty"`
	Matrix      yaml.Node         `yaml:"matrix,omitempty"`
	Services    yaml.Node         `yaml:"services,omitempty"`
}

// Parse decodes a workflow YAML document into an orcaops.WorkflowSpec,
// applying the §4.4 shorthand expansions for `services` and `matrix`
// before validation.
func Parse(data []byte) (*orcaops.WorkflowSpec, error) {
	var raw rawWorkflowSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse workflow yaml: %v", orcaops.ErrValidation, err)
	}

	spec := &orcaops.WorkflowSpec{
		Name:        raw.Name,
		Description: raw.Description,
		Env:         raw.Env,
		Timeout:     raw.Timeout,
		Jobs:        make(map[string]*orcaops.WorkflowJob, len(raw.Jobs)),
	}

	for name, rj := range raw.Jobs {
		services, err := expandServices(rj.Services)
		if err != nil {
			return nil, fmt.Errorf("jobs.%s.services: %w", name, err)
		}
		matrix, err := expandMatrix(rj.Matrix)
		if err != nil {
			return nil, fmt.Errorf("jobs.%s.matrix: %w", name, err)
		}

		spec.Jobs[name] = &orcaops.WorkflowJob{
			Image:       rj.Image,
			Env:         rj.Env,
			Commands:    rj.Commands,
			Artifacts:   rj.Artifacts,
			Timeout:     rj.Timeout,
			Requires:    rj.Requires,
			IfCondition: rj.IfCondition,
			OnComplete:  rj.OnComplete,
			Matrix:      matrix,
			Services:    services,
		}
	}

	return spec, nil
}

// expandServices normalizes the `services` shorthand (§4.4):
// `["postgres:15"]` becomes `{postgres: {image: "postgres:15"}}`. A
// service name is derived from the image's repository component (the
// part before ":", with any registry path stripped to its last
// segment). An already-expanded mapping form passes through unchanged.
func expandServices(node yaml.Node) (map[string]orcaops.ServiceDefinition, error) {
	if node.Kind == 0 {
		return nil, nil
	}

	switch node.Kind {
	case yaml.SequenceNode:
		out := make(map[string]orcaops.ServiceDefinition, len(node.Content))
		for _, item := range node.Content {
			var ref string
			if err := item.Decode(&ref); err != nil {
				return nil, fmt.Errorf("services shorthand entry: %w", err)
			}
			name := serviceNameFromImage(ref)
			out[name] = orcaops.ServiceDefinition{Image: ref}
		}
		return out, nil
	case yaml.MappingNode:
		var out map[string]orcaops.ServiceDefinition
		if err := node.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode services map: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("services must be a list or a map")
	}
}

func serviceNameFromImage(ref string) string {
	name := ref
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			name = name[:i]
			break
		}
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

// expandMatrix normalizes the `matrix` shorthand (§4.4): a flat mapping
// of `{param: [values], exclude: [...], include: [...]}` becomes
// MatrixSpec{Parameters, Exclude, Include}. Only the flat shorthand is
// supported: a document shaped as `{parameters: {...}, ...}` fails,
// because its "parameters" value does not decode as a list of strings.
func expandMatrix(node yaml.Node) (*orcaops.MatrixSpec, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("matrix must be a map")
	}

	spec := &orcaops.MatrixSpec{Parameters: map[string][]string{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		valNode := node.Content[i+1]

		switch key {
		case "exclude":
			if err := valNode.Decode(&spec.Exclude); err != nil {
				return nil, fmt.Errorf("decode matrix.exclude: %w", err)
			}
		case "include":
			if err := valNode.Decode(&spec.Include); err != nil {
				return nil, fmt.Errorf("decode matrix.include: %w", err)
			}
		default:
			var values []string
			if err := valNode.Decode(&values); err != nil {
				return nil, fmt.Errorf("decode matrix.%s: %w", key, err)
			}
			spec.Parameters[key] = values
		}
	}
	return spec, nil
}
