package google

import (
	gmail "google.golang.org/api/gmail/v1"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsScopes are the scopes requested for the service account.
var SheetsScopes = []string{
	sheets.SpreadsheetsScope,
}

// GmailScopes are the scopes requested from the user for sending mail.
// Sending is all the automation does, so nothing broader is asked for.
var GmailScopes = []string{
	gmail.GmailSendScope,
}
