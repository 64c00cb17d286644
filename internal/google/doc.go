// Package google provides credentials for the Google APIs leadflow talks to.
//
// The lead sheet is read and written with a service account (the sheet is
// shared with the service account's address). Mail is sent as a real Gmail
// user, so it needs a user OAuth token: `leadflow auth` runs the installed-app
// flow once and the token is cached per account under the user cache
// directory, where TokenStore picks it up and keeps it refreshed.
package google
