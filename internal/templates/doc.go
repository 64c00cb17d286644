// Package templates renders the lead emails with the Liquid template
// language.
//
// Three templates ship built in: welcome, follow_up and summary. Each has a
// subject and a body, and either can be overridden from configuration.
// Lead templates see name, first_name, email, status and days_since;
// the summary template sees total, pending, contacted_today and date.
package templates
