package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epicalib/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SIMULATOR_BIN", "PARAM_LINE_NUMBER", "SCENARIO_PARALLELISM", "DB_DRIVER", "DATABASE_URL", "KEEP_ARTIFACTS", "SUITE_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tests/data/baseline_parameters.csv", cfg.Simulator.BaselineParams)
	assert.Equal(t, 1, cfg.Simulator.LineNumber)
	assert.Equal(t, "test_output.csv", cfg.Simulator.TimeSeriesFile)
	assert.Equal(t, "transmission_Run1.csv", cfg.Simulator.TransmissionFile)
	assert.Equal(t, "data_test", cfg.Workspace.Root)
	assert.False(t, cfg.Workspace.KeepArtifacts)
	assert.Equal(t, 1, cfg.Suite.Parallelism)
	assert.Zero(t, cfg.Suite.Timeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "calibration.db", cfg.Database.URL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SIMULATOR_BIN", "/opt/sim/exe_covid19")
	t.Setenv("PARAM_LINE_NUMBER", "3")
	t.Setenv("SCENARIO_PARALLELISM", "4")
	t.Setenv("KEEP_ARTIFACTS", "true")
	t.Setenv("SUITE_TIMEOUT", "90m")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/calibration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/sim/exe_covid19", cfg.Simulator.Binary)
	assert.Equal(t, 3, cfg.Simulator.LineNumber)
	assert.Equal(t, 4, cfg.Suite.Parallelism)
	assert.True(t, cfg.Workspace.KeepArtifacts)
	assert.Equal(t, 90*time.Minute, cfg.Suite.Timeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"line number", "PARAM_LINE_NUMBER", "0"},
		{"parallelism", "SCENARIO_PARALLELISM", "-2"},
		{"driver", "DB_DRIVER", "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestRequireSimulator(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "baseline.csv")
	require.NoError(t, os.WriteFile(baseline, []byte("n_total\n10000\n"), 0o644))

	cfg := &Config{Simulator: SimulatorConfig{BaselineParams: baseline}}
	assert.True(t, errors.IsConfiguration(cfg.RequireSimulator()))

	cfg.Simulator.Binary = "/bin/true"
	assert.NoError(t, cfg.RequireSimulator())

	cfg.Simulator.HouseholdFile = filepath.Join(dir, "missing.csv")
	assert.True(t, errors.IsConfiguration(cfg.RequireSimulator()))
}
