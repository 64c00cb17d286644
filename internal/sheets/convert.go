package sheets

import (
	"fmt"

	"github.com/teemow/leadflow/internal/leads"
)

// tableFromValues converts a Sheets value range into a table. The API drops
// trailing empty cells, so rows are padded back to the header width.
func tableFromValues(values [][]interface{}) *leads.Table {
	t := &leads.Table{}
	if len(values) == 0 {
		return t
	}
	t.Header = toStrings(values[0], 0)
	t.Rows = make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		t.Rows = append(t.Rows, toStrings(row, len(t.Header)))
	}
	return t
}

func toStrings(row []interface{}, width int) []string {
	n := len(row)
	if width > n {
		n = width
	}
	out := make([]string, n)
	for i, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}

// valuesFromTable converts a table into a Sheets value range, header first.
func valuesFromTable(t *leads.Table) [][]interface{} {
	out := make([][]interface{}, 0, len(t.Rows)+1)
	out = append(out, toInterfaces(t.Header))
	for _, row := range t.Rows {
		out = append(out, toInterfaces(row))
	}
	return out
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
