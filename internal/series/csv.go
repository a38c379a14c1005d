package series

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
)

// CSVSource reads samples from a CSV file. Two-column files (timestamp,value)
// hold a single series; three-column files (series,timestamp,value) may hold
// many and are filtered by the series name passed to Fetch. A header row is
// optional.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source for the CSV file at path
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch reads the file and returns the samples of series within [from, to)
func (c *CSVSource) Fetch(ctx context.Context, series string, from, to time.Time) ([]segment.Sample, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", c.path, err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", c.path, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var samples []segment.Sample
	for _, row := range rows {
		if row.Series != "" && series != "" && row.Series != series {
			continue
		}
		if inRange(row.Time, from, to) {
			samples = append(samples, row.Sample)
		}
	}
	return samples, nil
}

// Row is one parsed CSV record
type Row struct {
	segment.Sample
	Series string
}

// ReadCSV parses sample rows from r. Rows whose value cell is empty are skipped;
// any other malformed row is an error naming its line.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var rows []Row
	columns := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		if columns == 0 {
			columns = len(record)
			if columns != 2 && columns != 3 {
				return nil, fmt.Errorf("line %d: expected 2 or 3 columns, got %d", line, columns)
			}
			if isHeader(record) {
				continue
			}
		}
		if len(record) != columns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, columns, len(record))
		}

		var row Row
		timeCell, valueCell := record[0], record[1]
		if columns == 3 {
			row.Series = strings.TrimSpace(record[0])
			timeCell, valueCell = record[1], record[2]
		}

		if strings.TrimSpace(valueCell) == "" {
			continue
		}

		row.Time, err = ParseTime(timeCell)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row.Value, err = strconv.ParseFloat(strings.TrimSpace(valueCell), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, valueCell)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// isHeader treats a first row whose value cell is not numeric as a header
func isHeader(record []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(record[len(record)-1]), 64)
	return err != nil
}

// ReadEvents parses external event timestamps, one per line or in the first
// CSV column. Blank lines, '#' comments and a non-timestamp header are skipped.
func ReadEvents(r io.Reader) ([]time.Time, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var events []time.Time
	for first := true; ; first = false {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}

		t, err := ParseTime(record[0])
		if err != nil {
			if first {
				continue
			}
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, t)
	}
	return events, nil
}

// ReadEventsFile is ReadEvents over the file at path
func ReadEventsFile(path string) ([]time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadEvents(f)
}
