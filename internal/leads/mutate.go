package leads

import (
	"fmt"
	"strconv"
	"time"
)

// Notes written after a successful send.
const (
	NoteWelcomeSent  = "Welcome email sent"
	NoteFollowUpSent = "Follow-up email sent"
)

// Mutation is the set of cell updates caused by one successfully sent email.
type Mutation struct {
	Row         int
	Action      Action
	LastContact string
	// Status is empty when the status cell stays as it is.
	Status string
	Notes  string
}

// MutationFor returns the updates for a send of c.Action that succeeded.
// Only call it after the mail sender reported success; a failed send has no
// mutation. A welcome keeps the lead's status, a follow-up moves it into
// the follow-up cadence.
func MutationFor(c Classification, today time.Time, layout string) Mutation {
	if layout == "" {
		layout = DefaultDateLayout
	}
	m := Mutation{
		Row:         c.Record.Row,
		Action:      c.Action,
		LastContact: today.Format(layout),
	}
	switch c.Action {
	case ActionWelcome:
		m.Notes = NoteWelcomeSent
	case ActionFollowUp:
		m.Status = FollowUpStatusLabel
		m.Notes = NoteFollowUpSent
	}
	return m
}

// Apply returns a copy of t with the mutations written into their rows.
// t itself is not modified. Rows without a mutation are copied verbatim.
// A Notes column is appended to the header when the sheet has none.
func Apply(t *Table, cols Columns, muts []Mutation) (*Table, error) {
	if t == nil {
		return nil, fmt.Errorf("lead sheet is empty")
	}
	idx, err := cols.resolve(t)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	if len(muts) == 0 {
		return out, nil
	}
	if idx.notes < 0 {
		idx.notes = out.ensureColumn(cols.Notes)
	}
	for _, m := range muts {
		if m.Action == ActionNone {
			continue
		}
		if m.Row < 0 || m.Row >= len(out.Rows) {
			return nil, fmt.Errorf("mutation for row %d outside table of %d rows", m.Row, len(out.Rows))
		}
		out.setCell(m.Row, idx.lastContact, m.LastContact)
		if m.Status != "" {
			out.setCell(m.Row, idx.status, m.Status)
		}
		out.setCell(m.Row, idx.notes, m.Notes)
	}
	return out, nil
}

// FillDaysSince writes each lead's days since last contact into the
// cols.DaysSince column, adding the column if needed. It modifies t in
// place; pass a table the caller owns, such as the result of Apply. It is a
// no-op when cols.DaysSince is empty.
func FillDaysSince(t *Table, cols Columns, today time.Time, layout string) error {
	if cols.DaysSince == "" {
		return nil
	}
	idx, err := cols.resolve(t)
	if err != nil {
		return err
	}
	col := t.ensureColumn(cols.DaysSince)
	for i, row := range t.Rows {
		day, ok, _ := ParseLastContact(cell(row, idx.lastContact), layout, today.Location())
		t.setCell(i, col, strconv.Itoa(DaysSince(day, ok, today)))
	}
	return nil
}
