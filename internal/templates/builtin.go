package templates

// Template names.
const (
	Welcome  = "welcome"
	FollowUp = "follow_up"
	Summary  = "summary"
)

// Template is the source of one email.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

const welcomeBody = `Hi {{ first_name | default: "there" }},

Thanks for your interest in our property listings. I'll be your point of
contact and I'm happy to help you find the perfect place.

Just reply to this email with any questions, or let me know a good time
for a quick call.

Kind regards,
Your Real Estate Agent
`

const followUpBody = `Hi {{ name | default: "there" }},

Hope you're doing well. I just wanted to follow up on your interest in our property listings.
We'd love to help you find the perfect place.

When can we hop on a quick call?

Kind regards,
Your Real Estate Agent
`

const summaryBody = `Daily Lead Summary

Total Leads: {{ total }}
Pending Follow-ups: {{ pending }}
Leads Contacted Today: {{ contacted_today }}

Keep pushing! Each follow-up increases your conversion.
`

// Builtin returns the default templates.
func Builtin() map[string]Template {
	return map[string]Template{
		Welcome: {
			Subject: "Welcome to Our Service!",
			Body:    welcomeBody,
		},
		FollowUp: {
			Subject: "Quick Follow-Up Regarding Your Property Interest",
			Body:    followUpBody,
		},
		Summary: {
			Subject: "Daily Lead Summary",
			Body:    summaryBody,
		},
	}
}
