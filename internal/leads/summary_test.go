package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil, jan10, DefaultDateLayout))
}

func TestSummarize_AfterMutation(t *testing.T) {
	table := &Table{
		Header: []string{"Email", "Lead Status", "Last Contact Date", "Notes"},
		Rows: [][]string{
			{"a@x.com", "Closed", "2023-01-01", ""},
			{"b@x.com", "Won", "", ""},
			{"c@x.com", "Follow-up", "2024-01-01", ""},
			{"d@x.com", "Lost", "2024-01-09", ""},
			{"e@x.com", "New Lead", "2024-01-09", ""},
		},
	}
	cols := DefaultColumns()
	records, err := Records(table, cols)
	require.NoError(t, err)

	var muts []Mutation
	for _, c := range Plan(records, jan10, DefaultDateLayout) {
		if c.Action != ActionNone {
			muts = append(muts, MutationFor(c, jan10, ""))
		}
	}
	require.Len(t, muts, 1)

	updated, err := Apply(table, cols, muts)
	require.NoError(t, err)
	after, err := Records(updated, cols)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 5, Pending: 2, ContactedToday: 1}, Summarize(after, jan10, DefaultDateLayout))
}

func TestSummarize_IgnoresTimeOfDay(t *testing.T) {
	records := []Record{
		{Status: "New Lead", LastContact: "2024-01-10 18:45:00"},
		{Status: "follow-up", LastContact: "2024-01-10"},
		{Status: "Closed", LastContact: "garbage value"},
	}
	assert.Equal(t, Summary{Total: 3, Pending: 2, ContactedToday: 2}, Summarize(records, jan10, DefaultDateLayout))
}
