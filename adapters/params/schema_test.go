package params

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSchema(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "baseline.csv")
	candidate := filepath.Join(dir, "old.csv")
	require.NoError(t, WriteTable(baseline, []string{"a", "b", "c"}, [][]string{{"1", "2", "3"}}))
	require.NoError(t, WriteTable(candidate, []string{"a", "c", "legacy"}, [][]string{{"1", "30", "x"}}))

	diff, err := DiffSchema(baseline, candidate, DiffOptions{})
	require.NoError(t, err)
	assert.False(t, diff.Consistent())
	assert.Equal(t, []string{"b"}, diff.OnlyInNew)
	assert.Equal(t, []string{"legacy"}, diff.OnlyInOld)
	assert.Empty(t, diff.ValueMismatch)

	diff, err = DiffSchema(baseline, candidate, DiffOptions{CompareValues: true})
	require.NoError(t, err)
	require.Len(t, diff.ValueMismatch, 1)
	assert.Equal(t, ValueChange{Name: "c", Baseline: "3", Candidate: "30"}, diff.ValueMismatch[0])
}

func TestUpdateToSchema(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "baseline.csv")
	candidate := filepath.Join(dir, "old.csv")
	require.NoError(t, WriteTable(baseline, []string{"a", "b", "c", "d"}, [][]string{{"1", "2", "3", "4"}}))
	require.NoError(t, WriteTable(candidate, []string{"c", "a", "legacy", "old_d"}, [][]string{{"30", "10", "x", "40"}, {"31", "11", "y", "41"}}))

	err := UpdateToSchema(baseline, candidate, UpdateOptions{
		Renames:   map[string]string{"d": "old_d"},
		Overrides: map[string]string{"b": "99"},
	})
	require.NoError(t, err)

	header, rows, err := readTable(candidate)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, header)
	assert.Equal(t, [][]string{{"10", "99", "30", "40"}, {"11", "99", "31", "41"}}, rows)

	bakHeader, _, err := readTable(filepath.Join(dir, "old.bak"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "legacy", "old_d"}, bakHeader)

	diff, err := DiffSchema(baseline, candidate, DiffOptions{})
	require.NoError(t, err)
	assert.True(t, diff.Consistent())
}
