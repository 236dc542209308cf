package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hickar/mailchew/internal/app/config"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (r *recordingRunner) Run(_ context.Context, account config.AccountConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, account.Login)
	return r.fail[account.Login]
}

func (r *recordingRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func TestDaemonSyncsEveryAccount(t *testing.T) {
	runner := &recordingRunner{fail: map[string]error{"bob": errors.New("login failed")}}
	cfg := config.Config{
		SyncInterval:    time.Hour,
		SyncTaskTimeout: time.Second,
		Accounts: []config.AccountConfig{
			{Login: "alice"},
			{Login: "bob"},
			{Login: "carol"},
		},
	}

	d := NewDaemon(cfg, &Scheduler{}, runner, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(runner.Calls()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"alice", "bob", "carol"}, runner.Calls())

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestDaemonInvalidInterval(t *testing.T) {
	d := NewDaemon(config.Config{}, &Scheduler{}, &recordingRunner{}, slog.New(slog.DiscardHandler))

	err := d.Start(context.Background())
	assert.ErrorContains(t, err, "interval must be larger than 0")
}

func TestSchedulerTicks(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)

	s := &Scheduler{}
	err := s.ScheduleWithCtx(context.Background(), schedulerSettings{
		Interval: 5 * time.Millisecond,
		Callback: func() {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestSchedulerInvalidSettings(t *testing.T) {
	s := &Scheduler{}

	assert.Error(t, s.ScheduleWithCtx(context.Background(), schedulerSettings{Callback: func() {}}))
	assert.Error(t, s.ScheduleWithCtx(context.Background(), schedulerSettings{Interval: time.Second}))

	// Stopping an unscheduled scheduler is a no-op.
	s.Stop()
}
