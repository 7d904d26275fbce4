package workflow

import (
	"fmt"
	"sort"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// GetLevels returns spec's jobs grouped into dependency levels (§4.4): a
// level is the maximal set of nodes whose `requires` are all satisfied
// by earlier levels, computed via Kahn's algorithm. Levels, and the job
// names within each level, are sorted lexicographically for
// determinism.
func GetLevels(spec *orcaops.WorkflowSpec) ([][]string, error) {
	indegree := make(map[string]int, len(spec.Jobs))
	dependents := make(map[string][]string, len(spec.Jobs))

	for name, job := range spec.Jobs {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, req := range job.Requires {
			indegree[name]++
			dependents[req] = append(dependents[req], name)
		}
	}

	var levels [][]string
	remaining := len(indegree)
	for remaining > 0 {
		var ready []string
		for name, deg := range indegree {
			if deg == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: workflow jobs contain a dependency cycle", orcaops.ErrValidation)
		}
		sort.Strings(ready)
		levels = append(levels, ready)

		for _, name := range ready {
			delete(indegree, name)
			remaining--
		}
		for _, name := range ready {
			for _, dep := range dependents[name] {
				if _, ok := indegree[dep]; ok {
					indegree[dep]--
				}
			}
		}
	}
	return levels, nil
}
