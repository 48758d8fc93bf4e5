package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadOutcomeFiles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "suite")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	valid := `{"run_id":"0190f2c4-0000-7000-8000-000000000001","suite_id":"s1","scenario":{"name":"monotone_household"},"status":"passed","trials":[]}`
	require.NoError(t, os.WriteFile(filepath.Join(nested, "ok.json"), []byte(valid), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip"), 0o644))

	files, err := findOutcomeFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	outcome, err := loadOutcomeFromFile(filepath.Join(nested, "ok.json"))
	require.NoError(t, err)
	assert.Equal(t, "monotone_household", outcome.Scenario.Name)

	_, err = loadOutcomeFromFile(filepath.Join(dir, "empty.json"))
	assert.Error(t, err)
}
