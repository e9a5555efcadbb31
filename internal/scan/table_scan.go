package scan

import (
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/spill"
)

// TableFile returns the file name holding a base table.
func TableFile(table string) string {
	return table + ".tbl"
}

// TableScan reads a base table stored as a run file, one page at a time.
type TableScan struct {
	table  string
	run    *spill.Run
	reader *spill.Reader
}

// NewTableScan creates a scan over table. The schema is read from the table file.
func NewTableScan(space *spill.Space, table string) (*TableScan, error) {
	run, err := space.Open(TableFile(table))
	if err != nil {
		return nil, err
	}
	return &TableScan{table: table, run: run}, nil
}

// Open positions the scan before the first page.
func (ts *TableScan) Open() error {
	ts.reader = ts.run.Reader()
	return nil
}

func (ts *TableScan) Next() (*record.Batch, error) {
	if ts.reader == nil {
		return nil, nil
	}
	return ts.reader.Next()
}

// Close ends the scan. Table files are never removed.
func (ts *TableScan) Close() error {
	ts.reader = nil
	return nil
}

func (ts *TableScan) Schema() *record.Schema {
	return ts.run.Schema()
}

// Table returns the scanned table's name.
func (ts *TableScan) Table() string {
	return ts.table
}
