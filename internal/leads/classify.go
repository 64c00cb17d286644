package leads

import (
	"strings"
	"time"
)

// Action is what the automation does for one lead in one run.
type Action int

const (
	ActionNone Action = iota
	ActionWelcome
	ActionFollowUp
)

func (a Action) String() string {
	switch a {
	case ActionWelcome:
		return "welcome"
	case ActionFollowUp:
		return "follow_up"
	default:
		return "none"
	}
}

// SkipBlankEmail is the skip reason of a lead that was due an email but has
// no address.
const SkipBlankEmail = "blank email"

// Classification is the decision for one record.
type Classification struct {
	Record Record
	Action Action

	Status      Status
	LastContact time.Time
	Contacted   bool
	DaysSince   int

	// SkipReason is set when the lead was due an email that was suppressed.
	SkipReason string

	// Issues lists data-quality problems found while classifying.
	Issues []*DataQualityError
}

// Classify decides the action for rec. It depends only on its arguments;
// dates are read with layout in today's location.
func Classify(rec Record, today time.Time, layout string) Classification {
	c := Classification{
		Record: rec,
		Status: NormalizeStatus(rec.Status),
	}

	day, ok, err := ParseLastContact(rec.LastContact, layout, today.Location())
	if err != nil {
		c.Issues = append(c.Issues, &DataQualityError{
			Row:   rec.Row,
			Field: "last_contact",
			Value: rec.LastContact,
			Err:   err,
		})
	}
	c.LastContact, c.Contacted = day, ok
	c.DaysSince = DaysSince(day, ok, today)

	switch {
	case c.Status == StatusNew && !c.Contacted:
		c.Action = ActionWelcome
	case c.Status.Pending() && c.DaysSince > FollowUpAfterDays:
		c.Action = ActionFollowUp
	}

	if c.Action != ActionNone && strings.TrimSpace(rec.Email) == "" {
		c.SkipReason = SkipBlankEmail
		c.Issues = append(c.Issues, &DataQualityError{
			Row:   rec.Row,
			Field: "email",
			Value: rec.Email,
			Err:   ErrBlankEmail,
		})
		c.Action = ActionNone
	}
	return c
}

// Plan classifies every record in order.
func Plan(records []Record, today time.Time, layout string) []Classification {
	out := make([]Classification, 0, len(records))
	for _, rec := range records {
		out = append(out, Classify(rec, today, layout))
	}
	return out
}
