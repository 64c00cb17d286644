package leads

import (
	"fmt"
	"strings"
)

// Table is a snapshot of the lead sheet: a header row and data rows of raw
// cell strings. Row i of Rows is the lead with identity i.
type Table struct {
	Header []string
	Rows   [][]string
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// ColumnIndex returns the index of the named header, matched
// case-insensitively after trimming, or -1.
func (t *Table) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// cell returns row[i], or "" when the row is short or i is -1.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// setCell writes v into row i of t, growing the row to the header width.
func (t *Table) setCell(row, col int, v string) {
	for len(t.Rows[row]) < len(t.Header) {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = v
}

// ensureColumn returns the index of name, appending it to the header if the
// sheet does not have it yet.
func (t *Table) ensureColumn(name string) int {
	if i := t.ColumnIndex(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

// Columns names the header cells the lead fields are read from.
type Columns struct {
	Email       string `yaml:"email"`
	Name        string `yaml:"name"`
	Status      string `yaml:"status"`
	LastContact string `yaml:"last_contact"`
	Notes       string `yaml:"notes"`

	// DaysSince, when set, is filled with each lead's days since last
	// contact on write-back.
	DaysSince string `yaml:"days_since"`
}

// DefaultColumns returns the header names of the lead sheet layout.
func DefaultColumns() Columns {
	return Columns{
		Email:       "Email",
		Name:        "Lead Name",
		Status:      "Lead Status",
		LastContact: "Last Contact Date",
		Notes:       "Notes",
	}
}

// WithDefaults fills empty names from DefaultColumns. DaysSince stays
// optional.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.Email == "" {
		c.Email = d.Email
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Status == "" {
		c.Status = d.Status
	}
	if c.LastContact == "" {
		c.LastContact = d.LastContact
	}
	if c.Notes == "" {
		c.Notes = d.Notes
	}
	return c
}

// index holds resolved column positions; -1 means absent.
type index struct {
	email, name, status, lastContact, notes int
}

func (c Columns) resolve(t *Table) (index, error) {
	idx := index{
		email:       t.ColumnIndex(c.Email),
		name:        t.ColumnIndex(c.Name),
		status:      t.ColumnIndex(c.Status),
		lastContact: t.ColumnIndex(c.LastContact),
		notes:       t.ColumnIndex(c.Notes),
	}
	var missing []string
	if idx.email < 0 {
		missing = append(missing, c.Email)
	}
	if idx.status < 0 {
		missing = append(missing, c.Status)
	}
	if idx.lastContact < 0 {
		missing = append(missing, c.LastContact)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("lead sheet is missing required columns %q (header: %q)", missing, t.Header)
	}
	return idx, nil
}

// Record is one lead. Row is the lead's position in Table.Rows and is the
// identity used to write mutations back.
type Record struct {
	Row         int
	Email       string
	Name        string
	Status      string
	LastContact string
	Notes       string
}

// Records reads every data row of t into a Record, in table order.
func Records(t *Table, cols Columns) ([]Record, error) {
	if t == nil {
		return nil, fmt.Errorf("lead sheet is empty")
	}
	idx, err := cols.resolve(t)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, Record{
			Row:         i,
			Email:       strings.TrimSpace(cell(row, idx.email)),
			Name:        strings.TrimSpace(cell(row, idx.name)),
			Status:      cell(row, idx.status),
			LastContact: cell(row, idx.lastContact),
			Notes:       cell(row, idx.notes),
		})
	}
	return out, nil
}
