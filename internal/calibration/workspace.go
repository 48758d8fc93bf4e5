package calibration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"epicalib/adapters/params"
	apperrors "epicalib/internal/errors"
)

// Names of the private copies inside a workspace
const (
	WorkspaceParamFile     = "test_parameters.csv"
	WorkspaceHouseholdFile = "test_household_demographics.csv"
)

// Workspace is a scenario's private directory: a copy of the baseline
// parameter file, a copy of the household file and the simulator output
// directory. Scenarios running in parallel never share one.
type Workspace struct {
	Dir           string
	ParamFile     string
	HouseholdFile string
	OutputDir     string
	keep          bool
}

// NewWorkspace creates a fresh workspace for name under root
func NewWorkspace(root, name, baselineParams, householdFile string, keep bool) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to create workspace root: %w", err))
	}
	dir, err := os.MkdirTemp(root, sanitizeName(name)+"-")
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to create workspace: %w", err))
	}

	ws := &Workspace{
		Dir:           dir,
		ParamFile:     filepath.Join(dir, WorkspaceParamFile),
		HouseholdFile: filepath.Join(dir, WorkspaceHouseholdFile),
		OutputDir:     filepath.Join(dir, "output"),
		keep:          keep,
	}

	if err := params.CopyFile(baselineParams, ws.ParamFile); err != nil {
		ws.Teardown()
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to copy baseline parameter file: %w", err))
	}
	if householdFile == "" {
		ws.HouseholdFile = ""
	} else if err := params.CopyFile(householdFile, ws.HouseholdFile); err != nil {
		ws.Teardown()
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to copy household file: %w", err))
	}
	if err := os.MkdirAll(ws.OutputDir, 0o755); err != nil {
		ws.Teardown()
		return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to create output directory: %w", err))
	}
	return ws, nil
}

// Params loads the private parameter copy at lineNumber
func (w *Workspace) Params(lineNumber int) (*params.File, error) {
	return params.Load(w.ParamFile, lineNumber)
}

// Teardown removes the workspace unless artifacts are kept
func (w *Workspace) Teardown() {
	if w.keep {
		log.Printf("[Workspace] keeping %s", w.Dir)
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Printf("[Workspace] failed to remove %s: %v", w.Dir, err)
	}
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
