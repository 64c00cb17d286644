package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// RunFunc performs one scheduled run.
type RunFunc func(ctx context.Context) error

// Scheduler runs a RunFunc on a standard five-field cron spec or a
// descriptor such as "@daily", evaluated in a fixed time zone. A tick that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	run    RunFunc
	logger *slog.Logger
	cron   *rcron.Cron
	entry  rcron.EntryID

	running atomic.Bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and returns a stopped scheduler.
func New(spec string, loc *time.Location, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("schedule is empty")
	}
	if run == nil {
		return nil, errors.New("run function is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := rcron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		spec:   spec,
		run:    run,
		logger: logger,
		ctx:    context.Background(),
		cron: rcron.New(
			rcron.WithLocation(loc),
			rcron.WithLogger(cl),
			rcron.WithChain(rcron.Recover(cl), rcron.SkipIfStillRunning(cl)),
		),
	}
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the scheduler. Runs receive a context derived from ctx;
// the scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx, s.cancel = runCtx, cancel
	s.mu.Unlock()

	s.cron.Start()
	s.running.Store(true)
	s.logger.Info("scheduler started", "schedule", s.spec, "next_run", s.Next())

	go func() {
		<-runCtx.Done()
		s.running.Store(false)
		s.cron.Stop()
	}()
}

// Stop stops scheduling new runs and waits up to timeout for a running
// one to finish. It reports whether the running job finished in time.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	s.running.Store(false)
	stopCtx := s.cron.Stop()
	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	}()

	select {
	case <-stopCtx.Done():
		s.logger.Info("scheduler stopped")
		return true
	case <-time.After(timeout):
		s.logger.Warn("scheduler stop timed out waiting for the running job")
		return false
	}
}

// Next returns the next scheduled run time, or the zero time when the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	if !s.running.Load() {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("scheduled run starting")
	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err.Error(), "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled run finished", "duration", time.Since(start), "next_run", s.Next())
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
