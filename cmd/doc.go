// Package cmd implements the command-line interface for leadflow.
//
// This package provides the following commands:
//   - run: Run the lead automation once
//   - plan: Show the planned action per lead without sending or saving
//   - serve: Serve the HTTP trigger, optionally running on a cron schedule
//   - auth: Authorize the Gmail account lead mail is sent from
//   - version: Display version information
//
// The run command is the default command when no subcommand is specified.
package cmd
