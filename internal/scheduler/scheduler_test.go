package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noop(context.Context) error { return nil }

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		run     RunFunc
		wantErr bool
	}{
		{"five fields", "0 9 * * 1-5", noop, false},
		{"descriptor", "@daily", noop, false},
		{"interval", "@every 1h", noop, false},
		{"empty", "", noop, true},
		{"seconds field not accepted", "0 0 9 * * *", noop, true},
		{"garbage", "every morning", noop, true},
		{"nil run", "@daily", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.spec, time.UTC, tt.run, discardLogger())
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestScheduler_NextUsesLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	s, err := New("0 9 * * *", berlin, noop, discardLogger())
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero(), "not started")

	s.Start(context.Background())
	defer s.Stop(time.Second)

	next := s.Next().In(berlin)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestScheduler_RunsJob(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", time.UTC, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, s.Stop(time.Second))
}

func TestScheduler_TickLogsFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	s, err := New("@daily", time.UTC, func(ctx context.Context) error {
		return errors.New("sheet unavailable")
	}, logger)
	require.NoError(t, err)

	s.tick()
	assert.Contains(t, logs.String(), "scheduled run failed")
	assert.Contains(t, logs.String(), "sheet unavailable")
}

func TestScheduler_RunContextCancelledOnStop(t *testing.T) {
	var got context.Context
	s, err := New("@daily", time.UTC, func(ctx context.Context) error {
		got = ctx
		return nil
	}, discardLogger())
	require.NoError(t, err)

	s.Start(context.Background())
	s.tick()
	require.NotNil(t, got)
	assert.NoError(t, got.Err())

	s.Stop(time.Second)
	assert.Error(t, got.Err())
}

func TestScheduler_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := New("@daily", time.UTC, noop, discardLogger())
	require.NoError(t, err)

	s.Start(ctx)
	require.False(t, s.Next().IsZero())
	cancel()
	require.Eventually(t, func() bool { return s.Next().IsZero() }, time.Second, 10*time.Millisecond)
}

func TestCronLogger(t *testing.T) {
	var logs bytes.Buffer
	l := cronLogger{logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("wake", "now", "t")
	l.Error(errors.New("panic"), "job failed", "entry", 1)
	assert.Contains(t, logs.String(), "cron: wake")
	assert.Contains(t, logs.String(), "cron: job failed")
	assert.Contains(t, logs.String(), "error=panic")
}
