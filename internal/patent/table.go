package patent

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when a record would break ascending ID order.
var ErrOutOfOrder = errors.New("document ids must be appended in ascending order")

// Table is the in-memory result set of one crawl. Rows are appended once and
// never modified; every column accessor returns slices of equal length that
// are aligned by position.
type Table struct {
	records []Record
}

// NewTable returns an empty table with room for capacity rows.
func NewTable(capacity int) *Table {
	if capacity < 0 {
		capacity = 0
	}
	return &Table{records: make([]Record, 0, capacity)}
}

// Append stores a copy of fields as the row for id.
func (t *Table) Append(id DocumentID, fields Fields) error {
	if n := len(t.records); n > 0 && id <= t.records[n-1].ID {
		return fmt.Errorf("append %d after %d: %w", id, t.records[n-1].ID, ErrOutOfOrder)
	}
	t.records = append(t.records, Record{ID: id, Fields: fields.clone()})
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of all rows in insertion order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	for i, rec := range t.records {
		out[i] = Record{ID: rec.ID, Fields: rec.Fields.clone()}
	}
	return out
}

// IDs returns the document number column.
func (t *Table) IDs() []DocumentID {
	out := make([]DocumentID, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.ID
	}
	return out
}

// ApplicationDates returns the application date column.
func (t *Table) ApplicationDates() []string {
	out := make([]string, len(t.records))
	for i, rec := range t.records {
		out[i] = rec.ApplicationDate
	}
	return out
}

// IndustryCodes returns the industry code column.
func (t *Table) IndustryCodes() [][]string {
	return t.listColumn(func(f Fields) []string { return f.IndustryCodes })
}

// Applicants returns the applicant column.
func (t *Table) Applicants() [][]string {
	return t.listColumn(func(f Fields) []string { return f.Applicants })
}

// Authors returns the author column.
func (t *Table) Authors() [][]string {
	return t.listColumn(func(f Fields) []string { return f.Authors })
}

// AuthorCountries returns the author country column.
func (t *Table) AuthorCountries() [][]string {
	return t.listColumn(func(f Fields) []string { return f.AuthorCountries })
}

// Tally counts author country codes across all rows.
func (t *Table) Tally() *Tally {
	tally := NewTally()
	for _, rec := range t.records {
		tally.AddAll(rec.AuthorCountries)
	}
	return tally
}

func (t *Table) listColumn(pick func(Fields) []string) [][]string {
	out := make([][]string, len(t.records))
	for i, rec := range t.records {
		out[i] = cloneStrings(pick(rec.Fields))
	}
	return out
}
