// Package scheduler starts automation runs on a cron schedule.
//
// Schedules are standard five-field cron expressions evaluated in a fixed
// time zone. A tick that fires while the previous run is still going is
// skipped, and Stop waits a bounded time for the current run to finish.
//
// Example:
//
//	s, err := scheduler.New("0 9 * * *", loc, run, logger)
//	if err != nil {
//	    return err
//	}
//	s.Start(ctx)
//	defer s.Stop(time.Minute)
package scheduler
