package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func TestMatrixKey_SortsKeys(t *testing.T) {
	assert.Equal(t, "a=1,b=2", MatrixKey(map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "", MatrixKey(nil))
}

func TestExpandMatrix_NilExpandsToSingleEmptyRow(t *testing.T) {
	rows := ExpandMatrix(nil)
	assert.Equal(t, []map[string]string{{}}, rows)
}

func TestExpandMatrix_CartesianProduct(t *testing.T) {
	m := &orcaops.MatrixSpec{Parameters: map[string][]string{
		"os":      {"linux", "mac"},
		"version": {"3.10", "3.11"},
	}}
	rows := ExpandMatrix(m)
	assert.Len(t, rows, 4)
}

func TestExpandMatrix_ExcludeDropsMatchingRow(t *testing.T) {
	m := &orcaops.MatrixSpec{
		Parameters: map[string][]string{
			"os":      {"linux", "mac"},
			"version": {"3.10", "3.11"},
		},
		Exclude: []map[string]string{{"os": "mac", "version": "3.10"}},
	}
	rows := ExpandMatrix(m)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.False(t, row["os"] == "mac" && row["version"] == "3.10")
	}
}

func TestExpandMatrix_ExcludePartialKeyMatchesAllRowsSharingIt(t *testing.T) {
	m := &orcaops.MatrixSpec{
		Parameters: map[string][]string{
			"os":      {"linux", "mac"},
			"version": {"3.10", "3.11"},
		},
		Exclude: []map[string]string{{"os": "mac"}},
	}
	rows := ExpandMatrix(m)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotEqual(t, "mac", row["os"])
	}
}

func TestExpandMatrix_IncludeAppendsNewRow(t *testing.T) {
	m := &orcaops.MatrixSpec{
		Parameters: map[string][]string{"os": {"linux"}},
		Include:    []map[string]string{{"os": "windows", "experimental": "true"}},
	}
	rows := ExpandMatrix(m)
	assert.Len(t, rows, 2)
}

func TestExpandMatrix_IncludeAlreadyPresentIsNotDuplicated(t *testing.T) {
	m := &orcaops.MatrixSpec{
		Parameters: map[string][]string{"os": {"linux"}},
		Include:    []map[string]string{{"os": "linux"}},
	}
	rows := ExpandMatrix(m)
	assert.Len(t, rows, 1)
}

func TestExpandMatrix_DeterministicOrder(t *testing.T) {
	m := &orcaops.MatrixSpec{Parameters: map[string][]string{"v": {"b", "a", "c"}}}
	rows1 := ExpandMatrix(m)
	rows2 := ExpandMatrix(m)
	assert.Equal(t, rows1, rows2)
	assert.Equal(t, "v=a", MatrixKey(rows1[0]))
	assert.Equal(t, "v=c", MatrixKey(rows1[2]))
}
