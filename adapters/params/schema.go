package params

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "epicalib/internal/errors"
)

// SchemaDiff describes how a candidate parameter file differs from the baseline schema
type SchemaDiff struct {
	File          string        `json:"file"`
	OnlyInNew     []string      `json:"only_in_new,omitempty"`
	OnlyInOld     []string      `json:"only_in_old,omitempty"`
	ValueMismatch []ValueChange `json:"value_mismatch,omitempty"`
}

// ValueChange is a shared parameter whose value differs between the files
type ValueChange struct {
	Name      string `json:"name"`
	Baseline  string `json:"baseline"`
	Candidate string `json:"candidate"`
}

// Consistent reports whether both files carry the same parameter names
func (d SchemaDiff) Consistent() bool {
	return len(d.OnlyInNew) == 0 && len(d.OnlyInOld) == 0
}

// DiffOptions controls DiffSchema
type DiffOptions struct {
	// CompareValues also compares the values of shared parameters on LineNumber
	CompareValues bool
	LineNumber    int
}

// DiffSchema compares the columns of candidate against the baseline schema.
// OnlyInNew lists names the baseline has and the candidate lacks.
func DiffSchema(baselinePath, candidatePath string, opts DiffOptions) (*SchemaDiff, error) {
	line := opts.LineNumber
	if line == 0 {
		line = 1
	}
	baseline, err := Load(baselinePath, line)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load baseline schema")
	}
	candidate, err := Load(candidatePath, line)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to load %s", candidatePath)
	}

	diff := &SchemaDiff{File: candidatePath}
	for _, name := range baseline.header {
		if _, ok := candidate.index[name]; !ok {
			diff.OnlyInNew = append(diff.OnlyInNew, name)
		}
	}
	for _, name := range candidate.header {
		if _, ok := baseline.index[name]; !ok {
			diff.OnlyInOld = append(diff.OnlyInOld, name)
		}
	}
	sort.Strings(diff.OnlyInNew)
	sort.Strings(diff.OnlyInOld)

	if opts.CompareValues {
		for _, name := range baseline.header {
			if _, ok := candidate.index[name]; !ok {
				continue
			}
			b, _ := baseline.Get(name)
			c, _ := candidate.Get(name)
			if b != c {
				diff.ValueMismatch = append(diff.ValueMismatch, ValueChange{Name: name, Baseline: b, Candidate: c})
			}
		}
	}
	return diff, nil
}

// UpdateOptions controls UpdateToSchema
type UpdateOptions struct {
	// Overrides supplies values for parameters, taking precedence over the candidate and the baseline
	Overrides map[string]string
	// Renames maps a parameter name of the new schema to its old name in the candidate
	Renames map[string]string
}

// UpdateToSchema rewrites every row of the candidate file to the baseline
// column order. Missing parameters take the baseline's first row value and
// parameters unknown to the baseline are dropped. The original file is kept
// next to it with a .bak extension.
func UpdateToSchema(baselinePath, candidatePath string, opts UpdateOptions) error {
	baseline, err := Load(baselinePath, 1)
	if err != nil {
		return apperrors.Wrap(err, "failed to load baseline schema")
	}
	header, rows, err := readTable(candidatePath)
	if err != nil {
		return err
	}
	oldIndex := make(map[string]int, len(header))
	for i, name := range header {
		oldIndex[name] = i
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		updated := make([]string, len(baseline.header))
		for i, name := range baseline.header {
			source := name
			if old, ok := opts.Renames[name]; ok {
				source = old
			}
			switch {
			case opts.Overrides[name] != "":
				updated[i] = opts.Overrides[name]
			case hasColumn(oldIndex, source, row):
				updated[i] = row[oldIndex[source]]
			default:
				updated[i] = baseline.row()[i]
			}
		}
		out = append(out, updated)
	}

	backup := bakPath(candidatePath)
	if err := copyFile(candidatePath, backup); err != nil {
		return apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("failed to back up %s: %w", candidatePath, err))
	}

	updated := &File{path: candidatePath, lineNumber: 1, header: baseline.Names(), rows: out}
	return updated.Persist()
}

func hasColumn(index map[string]int, name string, row []string) bool {
	i, ok := index[name]
	return ok && i < len(row)
}

func bakPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".bak"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteTable writes a header and rows as a parameter file
func WriteTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CopyFile copies a file, used to seed isolated scenario workspaces
func CopyFile(src, dst string) error {
	return copyFile(src, dst)
}
