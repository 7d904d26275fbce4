package workflow

import (
	"sort"
	"strings"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// MatrixKey derives the `k1=v1,k2=v2,…` identifier for a matrix row,
// with keys sorted for determinism (§4.4).
func MatrixKey(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + vars[k]
	}
	return strings.Join(parts, ",")
}

// ExpandMatrix computes the Cartesian product of m.Parameters, drops
// any row that equals an exclude row on all of the exclude row's keys,
// then appends each include row not already present (§4.4). Rows are
// returned sorted by MatrixKey for determinism. A nil matrix expands to
// a single empty row (the job runs once, unparameterized).
func ExpandMatrix(m *orcaops.MatrixSpec) []map[string]string {
	if m == nil || len(m.Parameters) == 0 {
		rows := []map[string]string{{}}
		for _, inc := range includeOf(m) {
			rows = appendIfAbsent(rows, inc)
		}
		return sortRows(rows)
	}

	rows := cartesianProduct(m.Parameters)

	var kept []map[string]string
	for _, row := range rows {
		if !matchesAnyExclude(row, m.Exclude) {
			kept = append(kept, row)
		}
	}
	for _, inc := range m.Include {
		kept = appendIfAbsent(kept, inc)
	}
	return sortRows(kept)
}

func includeOf(m *orcaops.MatrixSpec) []map[string]string {
	if m == nil {
		return nil
	}
	return m.Include
}

func cartesianProduct(parameters map[string][]string) []map[string]string {
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := []map[string]string{{}}
	for _, key := range keys {
		values := parameters[key]
		var next []map[string]string
		for _, row := range rows {
			for _, v := range values {
				combined := make(map[string]string, len(row)+1)
				for k, existing := range row {
					combined[k] = existing
				}
				combined[key] = v
				next = append(next, combined)
			}
		}
		rows = next
	}
	return rows
}

// matchesAnyExclude reports whether row equals any exclude row on all
// of that exclude row's keys (§4.4: "equals any exclude row on all its
// keys").
func matchesAnyExclude(row map[string]string, excludes []map[string]string) bool {
	for _, ex := range excludes {
		match := true
		for k, v := range ex {
			if row[k] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func appendIfAbsent(rows []map[string]string, candidate map[string]string) []map[string]string {
	key := MatrixKey(candidate)
	for _, row := range rows {
		if MatrixKey(row) == key {
			return rows
		}
	}
	return append(rows, candidate)
}

func sortRows(rows []map[string]string) []map[string]string {
	sort.Slice(rows, func(i, j int) bool {
		return MatrixKey(rows[i]) < MatrixKey(rows[j])
	})
	return rows
}
