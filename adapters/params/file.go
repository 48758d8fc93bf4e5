package params

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

// File is a ParameterSet backed by a CSV parameter file: one header row of
// parameter names followed by data rows. Only the selected row is edited;
// every other row is written back unchanged.
type File struct {
	path       string
	lineNumber int
	header     []string
	rows       [][]string
	index      map[string]int
}

var _ ports.ParameterSet = (*File)(nil)

// Load reads the parameter file at path and selects the 1-based data row lineNumber
func Load(path string, lineNumber int) (*File, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if lineNumber < 1 || lineNumber > len(rows) {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("parameter file %s has %d data rows, line %d requested", path, len(rows), lineNumber))
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("parameter file %s repeats column %q", path, name))
		}
		index[name] = i
	}

	return &File{
		path:       path,
		lineNumber: lineNumber,
		header:     header,
		rows:       rows,
		index:      index,
	}, nil
}

func readTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to open parameter file: %w", err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to parse parameter file %s: %w", path, err))
	}
	if len(records) == 0 {
		return nil, nil, apperrors.ConfigInvalid(fmt.Sprintf("parameter file %s is empty", path))
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}
	return header, records[1:], nil
}

func (f *File) Path() string    { return f.path }
func (f *File) LineNumber() int { return f.lineNumber }

func (f *File) row() []string {
	return f.rows[f.lineNumber-1]
}

// Get returns the textual value of a parameter
func (f *File) Get(name string) (string, error) {
	i, ok := f.index[name]
	if !ok {
		return "", unknownParameter(name)
	}
	return f.row()[i], nil
}

// GetFloat returns a numeric parameter
func (f *File) GetFloat(name string) (float64, error) {
	raw, err := f.Get(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("parameter %s is not numeric: %w", name, err))
	}
	return v, nil
}

// Set replaces the value of an existing parameter
func (f *File) Set(name, value string) error {
	i, ok := f.index[name]
	if !ok {
		return unknownParameter(name)
	}
	f.row()[i] = value
	return nil
}

// SetFloat stores a numeric value; integral values are written without a decimal point
func (f *File) SetFloat(name string, value float64) error {
	return f.Set(name, FormatValue(value))
}

// Names returns the parameter names in file order
func (f *File) Names() []string {
	out := make([]string, len(f.header))
	copy(out, f.header)
	return out
}

// Snapshot copies the current values of the selected row
func (f *File) Snapshot() map[string]string {
	out := make(map[string]string, len(f.header))
	row := f.row()
	for name, i := range f.index {
		out[name] = row[i]
	}
	return out
}

// Apply sets every value of overrides, stopping at the first unknown name.
// Names are applied in sorted order so errors are reproducible.
func (f *File) Apply(overrides map[string]string) error {
	return ApplyTo(f, overrides)
}

// Persist rewrites the whole file through a temporary file in the same directory
func (f *File) Persist() error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".params-*.csv")
	if err != nil {
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to persist parameters: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(f.header); err != nil {
		tmp.Close()
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to write header: %w", err))
	}
	if err := w.WriteAll(f.rows); err != nil {
		tmp.Close()
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to write rows: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to close parameter file: %w", err))
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to replace parameter file: %w", err))
	}
	return nil
}

// ApplyTo sets every value of overrides on params in sorted name order
func ApplyTo(params ports.ParameterSet, overrides map[string]string) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := params.Set(name, overrides[name]); err != nil {
			return err
		}
	}
	return nil
}

// FormatValue renders a numeric parameter the way the simulator reads it back
func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unknownParameter(name string) error {
	return apperrors.ConfigInvalid(fmt.Sprintf("unknown parameter %q", name))
}
