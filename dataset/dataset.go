// Package dataset loads sensor recordings from CSV and writes segmented
// recordings back.
//
// A Frame keeps the raw records next to the numeric matrix that is handed to
// the segmenter, so that a labelled copy can be written with every original
// column intact.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/chunkcpd/series"
)

var (
	// ErrNoColumns is returned when no numeric column was selected.
	ErrNoColumns = errors.New("dataset: no columns selected")

	// ErrUnknownColumn is returned for a column missing from the header.
	ErrUnknownColumn = errors.New("dataset: unknown column")

	// ErrLabelCount is returned when the number of labels differs from the
	// number of rows.
	ErrLabelCount = errors.New("dataset: label count does not match rows")
)

// ParseError reports a value that could not be parsed.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dataset: line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DefaultSegmentColumn is the name of the label column added by WriteCSV.
const DefaultSegmentColumn = "Segment Number"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Frame is a loaded recording.
type Frame struct {
	Header  []string
	Records [][]string
	Columns []string
	Times   []time.Time
	Data    series.Matrix
}

// Rows returns the number of samples.
func (f *Frame) Rows() int { return len(f.Records) }

// Option configures ReadCSV.
type Option func(*options)

type options struct {
	columns    []string
	exclude    []string
	timeColumn string
	comma      rune
}

// WithColumns selects the numeric channels in the given order. By default
// every column except the time column is used.
func WithColumns(names ...string) Option {
	return func(o *options) { o.columns = names }
}

// WithExcludedColumns removes names from the default column selection.
func WithExcludedColumns(names ...string) Option {
	return func(o *options) { o.exclude = names }
}

// WithTimeColumn parses name as an ISO 8601 timestamp and sorts the rows by it.
func WithTimeColumn(name string) Option {
	return func(o *options) { o.timeColumn = name }
}

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(o *options) { o.comma = r }
}

// ReadCSV reads a header line followed by records.
func ReadCSV(r io.Reader, optFns ...Option) (*Frame, error) {
	opts := options{comma: ','}
	for _, fn := range optFns {
		fn(&opts)
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.comma
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: read records: %w", err)
	}

	f := &Frame{Header: header, Records: records}

	if opts.timeColumn != "" {
		if err := f.sortByTime(opts.timeColumn); err != nil {
			return nil, err
		}
	}

	columns := opts.columns
	if len(columns) == 0 {
		for _, h := range header {
			if h != opts.timeColumn && !slices.Contains(opts.exclude, h) {
				columns = append(columns, h)
			}
		}
	}

	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	idx := make([]int, len(columns))
	for i, c := range columns {
		j := slices.Index(header, c)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}

		idx[i] = j
	}

	data := series.New(len(f.Records), len(columns))

	for i, rec := range f.Records {
		for j, col := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, &ParseError{Line: i + 2, Column: columns[j], Err: err}
			}

			data.Set(i, j, v)
		}
	}

	f.Columns = columns
	f.Data = data

	return f, nil
}

func (f *Frame) sortByTime(name string) error {
	col := slices.Index(f.Header, name)
	if col < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	times := make([]time.Time, len(f.Records))

	for i, rec := range f.Records {
		t, err := parseTime(rec[col])
		if err != nil {
			return &ParseError{Line: i + 2, Column: name, Err: err}
		}

		times[i] = t
	}

	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool { return times[order[a]].Before(times[order[b]]) })

	records := make([][]string, len(order))
	sorted := make([]time.Time, len(order))

	for i, o := range order {
		records[i] = f.Records[o]
		sorted[i] = times[o]
	}

	f.Records = records
	f.Times = sorted

	return nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, err
}

// Load reads the CSV file at path.
func Load(path string, optFns ...Option) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadCSV(file, optFns...)
}

// WriteCSV writes the frame with an additional label column. An empty
// column name selects DefaultSegmentColumn.
func (f *Frame) WriteCSV(w io.Writer, labels []int, column string) error {
	if len(labels) != len(f.Records) {
		return fmt.Errorf("%w: %d labels for %d rows", ErrLabelCount, len(labels), len(f.Records))
	}

	if column == "" {
		column = DefaultSegmentColumn
	}

	cw := csv.NewWriter(w)

	header := append(slices.Clone(f.Header), column)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 0, len(header))

	for i, rec := range f.Records {
		row = append(row[:0], rec...)
		row = append(row, strconv.Itoa(labels[i]))

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// Save writes the labelled frame to path.
func (f *Frame) Save(path string, labels []int, column string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := f.WriteCSV(file, labels, column); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

// Label assigns segment numbers to n samples from ascending change points.
// Samples before the first change point get 1; each change point opens the
// next segment. Change points beyond n are ignored.
func Label(n int, cps []int) []int {
	labels := make([]int, n)
	label, prev := 1, 0

	for _, cp := range cps {
		end := min(max(cp, prev), n)
		for i := prev; i < end; i++ {
			labels[i] = label
		}

		prev = end
		label++
	}

	for i := prev; i < n; i++ {
		labels[i] = label
	}

	return labels
}

// Boundaries is the inverse of Label: it returns every position whose label
// differs from its predecessor.
func Boundaries(labels []int) []int {
	var cps []int

	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			cps = append(cps, i)
		}
	}

	return cps
}

// IntColumn returns column name of the frame's numeric data truncated to
// integers.
func (f *Frame) IntColumn(name string) ([]int, error) {
	j := slices.Index(f.Columns, name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	out := make([]int, f.Rows())
	for i := range out {
		out[i] = int(f.Data.At(i, j))
	}

	return out, nil
}
