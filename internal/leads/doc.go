// Package leads implements lead classification and the state transitions that
// follow a sent email.
//
// The package is pure: it never talks to the spreadsheet or the mail service
// and it never reads the wall clock. Callers pass a snapshot of the lead table
// and the reference date ("today") in, and get classifications, mutations and
// summary counts back.
//
// # Decision rules
//
// For each record, first match wins:
//
//  1. Welcome: the status normalizes to NEW and the lead has never been
//     contacted.
//  2. Follow-up: the status normalizes to NEW or FOLLOW_UP and the last
//     contact is more than FollowUpAfterDays days old.
//  3. No action.
//
// A record without an email address never gets an action; the suppressed
// candidate is reported through Classification.SkipReason.
//
// # Mutations
//
// A Mutation is only produced for a send that succeeded. Apply returns a new
// table with the mutations applied, leaving the input snapshot untouched, so
// a failed send leaves its row exactly as loaded and the lead is retried on
// the next run.
//
// Example:
//
//	records, err := leads.Records(table, leads.DefaultColumns())
//	if err != nil {
//	    return err
//	}
//	for _, rec := range records {
//	    c := leads.Classify(rec, today, leads.DefaultDateLayout)
//	    if c.Action == leads.ActionNone {
//	        continue
//	    }
//	    // send, then on success:
//	    muts = append(muts, leads.MutationFor(c, today, leads.DefaultDateLayout))
//	}
//	updated, err := leads.Apply(table, cols, muts)
package leads
