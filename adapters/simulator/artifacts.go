package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"epicalib/domain/epidemic"
)

// Column names located in the artifact headers
const (
	ColTime                 = "Time"
	ColTotalInfected        = "total_infected"
	ColID                   = "ID"
	ColAgeGroup             = "age_group"
	ColInfectorStatus       = "infector_status"
	ColInfectorNetwork      = "infector_network"
	ColInfectorInfectedTime = "infector_infected_time"
)

// table is a parsed artifact with its header indexed by column name
type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("artifact is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return &table{columns: columns, rows: rows}, nil
}

func (t *table) number(row []string, line int, name string) (float64, error) {
	i := t.columns[name]
	if i >= len(row) {
		return 0, fmt.Errorf("row %d: missing value for %s", line, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("row %d: %s: %w", line, name, err)
	}
	return v, nil
}

func (t *table) integer(row []string, line int, name string) (int64, error) {
	v, err := t.number(row, line, name)
	if err != nil {
		return 0, err
	}
	if v != float64(int64(v)) {
		return 0, fmt.Errorf("row %d: %s is not an integer: %g", line, name, v)
	}
	return int64(v), nil
}

// ParseTimeSeries reads the Time and total_infected columns of a time-series artifact
func ParseTimeSeries(r io.Reader) (epidemic.TimeSeries, error) {
	t, err := readTable(r, ColTime, ColTotalInfected)
	if err != nil {
		return nil, err
	}

	series := make(epidemic.TimeSeries, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		ts, err := t.number(row, line, ColTime)
		if err != nil {
			return nil, err
		}
		total, err := t.number(row, line, ColTotalInfected)
		if err != nil {
			return nil, err
		}
		if ts < 0 || total < 0 {
			return nil, fmt.Errorf("row %d: negative time or count", line)
		}
		series = append(series, epidemic.TimePoint{Time: ts, TotalInfected: total})
	}
	return series, nil
}

// ParseTransmissionLog reads a transmission artifact, one infection per row
func ParseTransmissionLog(r io.Reader) (epidemic.TransmissionLog, error) {
	t, err := readTable(r, ColID, ColAgeGroup, ColInfectorStatus, ColInfectorNetwork, ColInfectorInfectedTime)
	if err != nil {
		return nil, err
	}

	events := make(epidemic.TransmissionLog, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		id, err := t.integer(row, line, ColID)
		if err != nil {
			return nil, err
		}
		age, err := t.integer(row, line, ColAgeGroup)
		if err != nil {
			return nil, err
		}
		status, err := t.integer(row, line, ColInfectorStatus)
		if err != nil {
			return nil, err
		}
		network, err := t.integer(row, line, ColInfectorNetwork)
		if err != nil {
			return nil, err
		}
		infected, err := t.number(row, line, ColInfectorInfectedTime)
		if err != nil {
			return nil, err
		}
		events = append(events, epidemic.TransmissionEvent{
			VictimID:             id,
			VictimAgeGroup:       epidemic.AgeGroup(age),
			InfectorStatus:       epidemic.InfectorStatus(status),
			InfectorNetwork:      epidemic.Network(network),
			InfectorInfectedTime: infected,
		})
	}
	return events, nil
}

// ReadTimeSeriesFile parses the time-series artifact at path
func ReadTimeSeriesFile(path string) (epidemic.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTimeSeries(f)
}

// ReadTransmissionFile parses the transmission artifact at path
func ReadTransmissionFile(path string) (epidemic.TransmissionLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTransmissionLog(f)
}

// WriteTimeSeries renders a series in the simulator's stdout format
func WriteTimeSeries(w io.Writer, series epidemic.TimeSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColTime, ColTotalInfected}); err != nil {
		return err
	}
	for _, p := range series {
		if err := cw.Write([]string{formatNumber(p.Time), formatNumber(p.TotalInfected)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTransmissionLog renders a log in the simulator's transmission file format
func WriteTransmissionLog(w io.Writer, events epidemic.TransmissionLog) error {
	if _, err := io.WriteString(w, "ID, age_group, infector_status, infector_network, infector_infected_time\n"); err != nil {
		return err
	}
	for _, e := range events {
		if _, err := fmt.Fprintf(w, "%d, %d, %d, %d, %s\n",
			e.VictimID, int(e.VictimAgeGroup), int(e.InfectorStatus), int(e.InfectorNetwork), formatNumber(e.InfectorInfectedTime)); err != nil {
			return err
		}
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
