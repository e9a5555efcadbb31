package metadata

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/yashagw/craneqp/internal/record"
)

// ErrMalformedStats is returned when a statistics resource does not have the
// expected two lines.
var ErrMalformedStats = errors.New("malformed statistics")

// StatInfo holds statistical information about a table: its tuple count and
// the estimated number of distinct values of each attribute.
type StatInfo struct {
	numRecs      int
	fields       []string
	distinctVals map[string]int
}

// NewStatInfo creates a new StatInfo instance. distinct lists one count per
// schema attribute, in schema order.
func NewStatInfo(schema *record.Schema, numRecs int, distinct []int) (*StatInfo, error) {
	if len(distinct) != schema.NumFields() {
		return nil, errors.Wrapf(ErrMalformedStats, "%d distinct counts for %d attributes", len(distinct), schema.NumFields())
	}
	si := &StatInfo{
		numRecs:      numRecs,
		fields:       schema.Fields(),
		distinctVals: make(map[string]int, len(distinct)),
	}
	for i, f := range si.fields {
		si.distinctVals[f] = distinct[i]
	}
	return si, nil
}

// RecordsOutput returns the number of records in this table
func (s *StatInfo) RecordsOutput() int {
	return s.numRecs
}

// DistinctValues returns the estimated number of distinct values of an attribute.
func (s *StatInfo) DistinctValues(fieldName string) (int, bool) {
	v, ok := s.distinctVals[fieldName]
	return v, ok
}

// Fields returns the attributes the statistics cover, in schema order.
func (s *StatInfo) Fields() []string {
	return s.fields
}

// ParseStats reads the two-line statistics resource of a table:
//
//	line 1: total tuple count
//	line 2: one distinct-value count per attribute, in schema order
func ParseStats(r io.Reader, schema *record.Schema) (*StatInfo, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading statistics")
	}
	if len(lines) != 2 {
		return nil, errors.Wrapf(ErrMalformedStats, "expected 2 lines, got %d", len(lines))
	}

	count, err := parseCounts(lines[0])
	if err != nil {
		return nil, err
	}
	if len(count) != 1 {
		return nil, errors.Wrapf(ErrMalformedStats, "tuple count line has %d values", len(count))
	}
	distinct, err := parseCounts(lines[1])
	if err != nil {
		return nil, err
	}
	return NewStatInfo(schema, count[0], distinct)
}

func parseCounts(line string) ([]int, error) {
	fields := strings.Fields(line)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return nil, errors.Wrapf(ErrMalformedStats, "bad count %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// WriteStats writes si in the format ParseStats reads.
func WriteStats(w io.Writer, si *StatInfo) error {
	counts := make([]string, len(si.fields))
	for i, f := range si.fields {
		counts[i] = strconv.Itoa(si.distinctVals[f])
	}
	_, err := fmt.Fprintf(w, "%d\n%s\n", si.numRecs, strings.Join(counts, " "))
	return errors.Wrap(err, "writing statistics")
}

// ComputeStats derives exact statistics from a table's tuples.
func ComputeStats(schema *record.Schema, rows []record.Tuple) (*StatInfo, error) {
	distinct := make([]int, schema.NumFields())
	for i := range distinct {
		seen := make(map[record.Constant]struct{})
		for _, row := range rows {
			seen[row[i]] = struct{}{}
		}
		distinct[i] = len(seen)
	}
	return NewStatInfo(schema, len(rows), distinct)
}
