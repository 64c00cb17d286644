package leads

import "strings"

// Status is the normalized lead status.
type Status int

const (
	// StatusOther covers every status the automation does not act on
	// (closed, converted, lost, blank, ...).
	StatusOther Status = iota
	// StatusNew is a lead that has not entered the follow-up cadence yet.
	StatusNew
	// StatusFollowUp is a lead in the follow-up cadence.
	StatusFollowUp
)

// FollowUpStatusLabel is written to the status column after a follow-up is sent.
const FollowUpStatusLabel = "Follow-up"

// String returns the status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusFollowUp:
		return "follow_up"
	default:
		return "other"
	}
}

// Pending reports whether the lead still needs attention.
func (s Status) Pending() bool {
	return s == StatusNew || s == StatusFollowUp
}

// NormalizeStatus maps a raw status cell to a Status.
//
// Matching is by substring on the lowercased, trimmed value: anything
// containing "new" is StatusNew, anything containing "follow" is
// StatusFollowUp. "new" is checked first, so "Not a new customer" is
// StatusNew.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "new"):
		return StatusNew
	case strings.Contains(s, "follow"):
		return StatusFollowUp
	default:
		return StatusOther
	}
}
