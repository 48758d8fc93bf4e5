package ports

// ParameterSet is the handle on one row of a simulator parameter file. Values
// are kept in their textual form; unknown names are configuration errors.
// The handle is owned by a single scenario and is not safe for concurrent use.
type ParameterSet interface {
	// Path is the parameter file the simulator is pointed at
	Path() string
	// LineNumber is the 1-based data row the handle edits
	LineNumber() int

	Get(name string) (string, error)
	GetFloat(name string) (float64, error)
	Set(name, value string) error
	SetFloat(name string, value float64) error
	Names() []string

	// Snapshot returns an independent copy of the current values
	Snapshot() map[string]string

	// Persist writes the current values back to Path
	Persist() error
}
