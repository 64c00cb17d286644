// Package automation runs the lead workflow end to end.
//
// A run loads the lead sheet, classifies every lead, sends the welcome and
// follow-up emails that are due, writes the updated sheet back and mails
// the daily summary to the agent. Only leads whose email was accepted by
// the mail service are updated, so a failed send is retried on the next
// run.
//
// The sheet and the mail service are reached through the TableStore and
// MailSender interfaces; internal/sheets and internal/gmail implement them.
package automation
