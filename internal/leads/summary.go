package leads

import "time"

// Summary holds the daily report counts.
type Summary struct {
	Total          int `json:"total"`
	Pending        int `json:"pending"`
	ContactedToday int `json:"contacted_today"`
}

// Summarize counts leads over the post-mutation records, so leads emailed
// in this run count as contacted today. Dates are read as by
// ParseLastContact with layout.
func Summarize(records []Record, today time.Time, layout string) Summary {
	s := Summary{Total: len(records)}
	for _, rec := range records {
		if NormalizeStatus(rec.Status).Pending() {
			s.Pending++
		}
		day, ok, _ := ParseLastContact(rec.LastContact, layout, today.Location())
		if ok && SameDay(day, today) {
			s.ContactedToday++
		}
	}
	return s
}
