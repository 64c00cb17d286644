// Package logging provides structured logging helpers for leadflow.
//
// All packages log through log/slog. This package keeps attribute names
// consistent (operation, run_id, row, action, ...) and keeps lead email
// addresses out of the logs: recipients are logged as a stable hash plus
// their domain, which is enough to correlate a failed send with a sheet row
// without leaking the address.
//
// Usage:
//
//	logger := logging.WithRun(logging.WithOperation(slog.Default(), "run"), runID)
//	logger.Warn("email send failed",
//	    logging.Row(rec.Row),
//	    logging.UserHash(rec.Email),
//	    logging.Err(err))
package logging
