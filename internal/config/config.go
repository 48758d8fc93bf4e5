package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"epicalib/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Simulator SimulatorConfig
	Workspace WorkspaceConfig
	Suite     SuiteConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Report    ReportConfig
}

// SimulatorConfig locates the simulator and its inputs
type SimulatorConfig struct {
	Binary           string
	BaselineParams   string
	HouseholdFile    string
	LineNumber       int
	TimeSeriesFile   string
	TransmissionFile string
}

// WorkspaceConfig controls the per-scenario working directories
type WorkspaceConfig struct {
	Root          string
	KeepArtifacts bool
}

// SuiteConfig selects and schedules scenarios
type SuiteConfig struct {
	MatrixFile  string
	Parallelism int
	// Timeout bounds a whole suite; zero means no limit
	Timeout time.Duration
}

// DatabaseConfig holds the result store connection
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// ReportConfig holds optional report output paths
type ReportConfig struct {
	XLSXPath     string
	MarkdownPath string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Simulator: *loadSimulatorConfig(),
		Workspace: *loadWorkspaceConfig(),
		Suite:     *loadSuiteConfig(),
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		Report:    *loadReportConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadSimulatorConfig() *SimulatorConfig {
	return &SimulatorConfig{
		Binary:           getEnvOrDefault("SIMULATOR_BIN", ""),
		BaselineParams:   getEnvOrDefault("BASELINE_PARAMS", "tests/data/baseline_parameters.csv"),
		HouseholdFile:    getEnvOrDefault("HOUSEHOLD_FILE", "tests/data/baseline_household_demographics.csv"),
		LineNumber:       getEnvIntOrDefault("PARAM_LINE_NUMBER", 1),
		TimeSeriesFile:   getEnvOrDefault("TIMESERIES_FILE", "test_output.csv"),
		TransmissionFile: getEnvOrDefault("TRANSMISSION_FILE", "transmission_Run1.csv"),
	}
}

func loadWorkspaceConfig() *WorkspaceConfig {
	return &WorkspaceConfig{
		Root:          getEnvOrDefault("WORKSPACE_DIR", "data_test"),
		KeepArtifacts: getEnvBoolOrDefault("KEEP_ARTIFACTS", false),
	}
}

func loadSuiteConfig() *SuiteConfig {
	return &SuiteConfig{
		MatrixFile:  getEnvOrDefault("SCENARIO_MATRIX", ""),
		Parallelism: getEnvIntOrDefault("SCENARIO_PARALLELISM", 1),
		Timeout:     getEnvDurationOrDefault("SUITE_TIMEOUT", 0),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver: getEnvOrDefault("DB_DRIVER", "sqlite"),
		URL:    getEnvOrDefault("DATABASE_URL", "calibration.db"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadReportConfig() *ReportConfig {
	return &ReportConfig{
		XLSXPath:     getEnvOrDefault("REPORT_XLSX", ""),
		MarkdownPath: getEnvOrDefault("REPORT_MD", ""),
	}
}

func validateConfig(config *Config) error {
	if config.Simulator.LineNumber < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("PARAM_LINE_NUMBER must be at least 1, got %d", config.Simulator.LineNumber))
	}
	if config.Suite.Parallelism < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("SCENARIO_PARALLELISM must be at least 1, got %d", config.Suite.Parallelism))
	}
	if config.Suite.Timeout < 0 {
		return errors.ConfigInvalid("SUITE_TIMEOUT must not be negative")
	}
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("DB_DRIVER must be sqlite or postgres, got %q", config.Database.Driver))
	}
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

// RequireSimulator checks what a suite run needs beyond Load's validation
func (c *Config) RequireSimulator() error {
	if c.Simulator.Binary == "" {
		return errors.ConfigInvalid("SIMULATOR_BIN is required")
	}
	if _, err := os.Stat(c.Simulator.BaselineParams); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("baseline parameter file %s: %v", c.Simulator.BaselineParams, err))
	}
	if c.Simulator.HouseholdFile != "" {
		if _, err := os.Stat(c.Simulator.HouseholdFile); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("household file %s: %v", c.Simulator.HouseholdFile, err))
		}
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
