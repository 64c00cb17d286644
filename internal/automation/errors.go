package automation

import "errors"

var (
	// ErrCollaboratorUnavailable means the lead sheet or the mail service
	// could not be reached or rejected the credentials. The run failed as
	// a whole.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrSummaryNotSent means the leads were processed and saved but the
	// daily summary email failed.
	ErrSummaryNotSent = errors.New("daily summary not sent")

	// ErrRunInProgress is returned when a run is started while another one
	// has not finished.
	ErrRunInProgress = errors.New("a run is already in progress")
)
