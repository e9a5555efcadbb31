package metadata

import (
	"github.com/yashagw/craneqp/internal/record"
	"github.com/yashagw/craneqp/internal/scan"
	"github.com/yashagw/craneqp/internal/spill"
)

// TableManager stores base tables as run files in a spill space.
type TableManager struct {
	space *spill.Space
}

func NewTableManager(space *spill.Space) *TableManager {
	return &TableManager{space: space}
}

// CreateTable writes rows as table, replacing any existing contents.
func (t *TableManager) CreateTable(table string, schema *record.Schema, rows []record.Tuple) error {
	w, err := t.space.CreateNamed(scan.TableFile(table), schema)
	if err != nil {
		return err
	}
	return appendRows(w, rows)
}

// AppendRows adds rows to an existing table.
func (t *TableManager) AppendRows(table string, rows []record.Tuple) error {
	w, err := t.space.OpenAppend(scan.TableFile(table))
	if err != nil {
		return err
	}
	return appendRows(w, rows)
}

func appendRows(w *spill.Writer, rows []record.Tuple) error {
	capacity := w.Run().PageCapacity()
	b := record.NewBatch(capacity)
	for _, row := range rows {
		if b.IsFull() {
			if err := w.Append(b); err != nil {
				return err
			}
			b = record.NewBatch(capacity)
		}
		b.Add(row)
	}
	return w.Append(b)
}

// GetSchema returns the schema stored in the table's header.
func (t *TableManager) GetSchema(table string) (*record.Schema, error) {
	run, err := t.space.Open(scan.TableFile(table))
	if err != nil {
		return nil, err
	}
	return run.Schema(), nil
}

// NumPages returns the number of data pages in the table.
func (t *TableManager) NumPages(table string) (int, error) {
	run, err := t.space.Open(scan.TableFile(table))
	if err != nil {
		return 0, err
	}
	return run.NumPages()
}
