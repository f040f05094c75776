package sink

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Table is an append-only CSV row store with a fixed column order. Rows
// are flushed to the file as they are appended; a crash loses at most the
// in-flight row.
type Table struct {
	file *os.File
	csv  *csv.Writer
	rows uint64
}

// NewTable creates the file, writes the single header row and flushes it.
func NewTable(path string, header []string) (*Table, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = ';'
	if err := cw.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush header %s: %w", path, err)
	}

	return &Table{file: f, csv: cw}, nil
}

// Append writes one data row and flushes it through to the file.
func (t *Table) Append(row []string) error {
	if err := t.csv.Write(row); err != nil {
		return err
	}
	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		return err
	}
	t.rows++
	return nil
}

// Rows is the number of data rows written, excluding the header.
func (t *Table) Rows() uint64 { return t.rows }

// Close flushes and closes the underlying file.
func (t *Table) Close() error {
	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
