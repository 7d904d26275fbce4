package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func specWithJobs(jobs map[string][]string) *orcaops.WorkflowSpec {
	spec := &orcaops.WorkflowSpec{Name: "t", Jobs: make(map[string]*orcaops.WorkflowJob, len(jobs))}
	for name, requires := range jobs {
		spec.Jobs[name] = &orcaops.WorkflowJob{Requires: requires}
	}
	return spec
}

func TestGetLevels_LinearChain(t *testing.T) {
	spec := specWithJobs(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})
	levels, err := GetLevels(spec)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, levels)
}

func TestGetLevels_FanOutIsOneLevel(t *testing.T) {
	spec := specWithJobs(map[string][]string{
		"build": nil,
		"lint":  {"build"},
		"test":  {"build"},
	})
	levels, err := GetLevels(spec)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []string{"build"}, levels[0])
	assert.Equal(t, []string{"lint", "test"}, levels[1])
}

func TestGetLevels_CycleIsRejected(t *testing.T) {
	spec := specWithJobs(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	_, err := GetLevels(spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, orcaops.ErrValidation)
}

func TestGetLevels_IndependentJobsShareFirstLevel(t *testing.T) {
	spec := specWithJobs(map[string][]string{
		"a": nil,
		"b": nil,
	})
	levels, err := GetLevels(spec)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, []string{"a", "b"}, levels[0])
}
