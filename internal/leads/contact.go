package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// NeverContactedDays is the days-since value of a lead that has never been
	// contacted. It sorts as the most overdue lead.
	NeverContactedDays = 999

	// FollowUpAfterDays is the follow-up cadence. A lead is due when its last
	// contact is strictly more than this many days old.
	FollowUpAfterDays = 2

	// DefaultDateLayout is the layout used when writing contact dates back.
	DefaultDateLayout = "2006-01-02"
)

var (
	// ErrUnparsableDate is wrapped by errors for date cells that are present
	// but cannot be read as a date.
	ErrUnparsableDate = errors.New("unparsable date")

	// ErrBlankEmail is wrapped by errors for leads that would have been
	// emailed but have no address.
	ErrBlankEmail = errors.New("blank email address")
)

// missingDateValues are cell contents that mean "no date". Spreadsheets that
// went through a dataframe round trip contain the string forms of its
// missing-value markers.
var missingDateValues = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"nat":  true,
}

// DataQualityError describes a cell that could not be used as-is. It is
// never fatal: the value is replaced by a safe default and the error is
// logged.
type DataQualityError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *DataQualityError) Unwrap() error {
	return e.Err
}

// ParseLastContact reads a last-contact cell as a calendar date in loc.
//
// The cell is first read with layout, the layout dates are written back
// with; an empty layout means DefaultDateLayout. Other formats are
// recognized heuristically, resolving ambiguous numeric dates in the same
// day and month order as layout.
//
// ok is false when the lead has never been contacted. That covers blank
// cells, missing-value markers and values that cannot be parsed; the last
// case also returns an error wrapping ErrUnparsableDate.
func ParseLastContact(raw, layout string, loc *time.Location) (day time.Time, ok bool, err error) {
	s := strings.TrimSpace(raw)
	if missingDateValues[strings.ToLower(s)] {
		return time.Time{}, false, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	if t, err := time.ParseInLocation(layout, s, loc); err == nil {
		return DateOf(t), true, nil
	}
	t, err := dateparse.ParseIn(s, loc, dateparse.PreferMonthFirst(!dayFirst(layout)))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnparsableDate, err)
	}
	return DateOf(t.In(loc)), true, nil
}

// dayFirst reports whether layout puts the day of month before the month.
func dayFirst(layout string) bool {
	day := strings.Index(layout, "02")
	if day < 0 {
		day = strings.Index(layout, "_2")
	}
	month := strings.Index(layout, "01")
	if month < 0 {
		month = strings.Index(layout, "Jan")
	}
	return day >= 0 && month >= 0 && day < month
}

// DateOf truncates t to midnight of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysSince returns the number of whole calendar days from the last contact
// to today. A lead that was never contacted (ok is false) gets
// NeverContactedDays. Contacts dated in the future give negative values.
func DaysSince(contact time.Time, ok bool, today time.Time) int {
	if !ok {
		return NeverContactedDays
	}
	return int(dayNumber(today) - dayNumber(contact))
}

// dayNumber counts days since the Unix epoch for t's calendar date,
// ignoring time of day and DST transitions.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return dayNumber(a) == dayNumber(b)
}
