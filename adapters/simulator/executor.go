package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"epicalib/domain/epidemic"
	"epicalib/internal"
	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

// Default artifact names inside the output directory
const (
	DefaultTimeSeriesFile   = "test_output.csv"
	DefaultTransmissionFile = "transmission_Run1.csv"

	stderrTailBytes = 2048
)

var logger = internal.DefaultLogger.For("Simulator")

// Config locates the simulator and the files handed to it
type Config struct {
	Binary           string
	OutputDir        string
	HouseholdFile    string
	TimeSeriesFile   string
	TransmissionFile string
}

// Executor invokes the simulator as a subprocess:
//
//	<binary> <parameter_file> <line_number> <output_dir> <household_file>
//
// Standard output becomes the time-series artifact and the transmission log
// is read from the output directory afterwards.
type Executor struct {
	cfg Config
}

var _ ports.Simulator = (*Executor)(nil)

// NewExecutor creates an executor, filling in default artifact names
func NewExecutor(cfg Config) *Executor {
	if cfg.TimeSeriesFile == "" {
		cfg.TimeSeriesFile = DefaultTimeSeriesFile
	}
	if cfg.TransmissionFile == "" {
		cfg.TransmissionFile = DefaultTransmissionFile
	}
	return &Executor{cfg: cfg}
}

// TimeSeriesPath is where the simulator's standard output is captured
func (e *Executor) TimeSeriesPath() string {
	return filepath.Join(e.cfg.OutputDir, e.cfg.TimeSeriesFile)
}

// TransmissionPath is where the simulator leaves its transmission log
func (e *Executor) TransmissionPath() string {
	return filepath.Join(e.cfg.OutputDir, e.cfg.TransmissionFile)
}

// Execute persists params, runs the simulator synchronously and parses both
// artifacts. The artifact files are removed before returning on every path.
func (e *Executor) Execute(ctx context.Context, params ports.ParameterSet) (*epidemic.Artifacts, error) {
	if e.cfg.Binary == "" {
		return nil, apperrors.ConfigInvalid("simulator binary is not configured")
	}
	if err := params.Persist(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, apperrors.RunFailure("failed to create output directory", err)
	}

	seriesPath := e.TimeSeriesPath()
	transmissionPath := e.TransmissionPath()
	// A log left by an earlier run must never be read as this run's output
	os.Remove(transmissionPath)
	defer os.Remove(seriesPath)
	defer os.Remove(transmissionPath)

	stdout, err := os.Create(seriesPath)
	if err != nil {
		return nil, apperrors.RunFailure("failed to create time-series artifact", err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Binary,
		params.Path(),
		strconv.Itoa(params.LineNumber()),
		e.cfg.OutputDir,
		e.cfg.HouseholdFile,
	)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	closeErr := stdout.Close()

	if runErr != nil {
		return nil, e.runError(ctx, runErr, stderr.Bytes())
	}
	if closeErr != nil {
		return nil, apperrors.RunFailure("failed to flush time-series artifact", closeErr)
	}

	series, err := ReadTimeSeriesFile(seriesPath)
	if err != nil {
		return nil, apperrors.RunFailure(fmt.Sprintf("unreadable time-series artifact %s", seriesPath), err)
	}
	transmissions, err := ReadTransmissionFile(transmissionPath)
	if err != nil {
		return nil, apperrors.RunFailure(fmt.Sprintf("unreadable transmission artifact %s", transmissionPath), err)
	}

	logger.Debug("run finished in %v: %d time steps, %d transmissions", time.Since(start).Round(time.Millisecond), len(series), len(transmissions))

	return &epidemic.Artifacts{
		TimeSeries:   series,
		Transmission: transmissions,
	}, nil
}

func (e *Executor) runError(ctx context.Context, err error, stderr []byte) error {
	if ctx.Err() != nil {
		return apperrors.RunFailure("simulator run cancelled", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := fmt.Sprintf("simulator exited with status %d", exitErr.ExitCode())
		if tail := stderrTail(stderr); tail != "" {
			msg += ": " + tail
		}
		return apperrors.RunFailure(msg, err)
	}
	return apperrors.RunFailure(fmt.Sprintf("failed to start simulator %s", e.cfg.Binary), err)
}

func stderrTail(stderr []byte) string {
	if len(stderr) > stderrTailBytes {
		stderr = stderr[len(stderr)-stderrTailBytes:]
	}
	return strings.TrimSpace(string(stderr))
}
