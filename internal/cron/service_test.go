package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name    string
	err     error
	panics  bool
	timeout time.Duration
	runs    int
	sawDead bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.panics {
		panic("nil map write")
	}
	if t.timeout > 0 {
		<-ctx.Done()
		t.sawDead = true
		return ctx.Err()
	}
	return t.err
}

type slowJob struct{ testJob }

func (s *slowJob) Timeout() time.Duration { return s.timeout }

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
	})
	require.NoError(t, err)
	return service
}

func TestServiceRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	crashing := &testJob{name: "crash", panics: true}
	after := &testJob{name: "after"}
	lock := &fakeLock{}

	report, err := newTestService(t, lock, ok, failing, crashing, after).RunOnce(context.Background())
	require.NoError(t, err)

	require.False(t, report.Skipped)
	require.Equal(t, 4, report.Ran)
	require.Equal(t, []string{"fail", "crash"}, report.Failed)
	for _, job := range []*testJob{ok, failing, crashing, after} {
		require.Equal(t, 1, job.runs, job.name)
	}
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.acquired)
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "held"}
	report, err := newTestService(t, &fakeLock{acquired: true}, job).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Zero(t, job.runs)
}

func TestServiceCancelsJobAtItsTimeout(t *testing.T) {
	job := &slowJob{testJob{name: "slow", timeout: 20 * time.Millisecond}}
	report, err := newTestService(t, &fakeLock{}, job).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, job.sawDead)
	require.Equal(t, []string{"slow"}, report.Failed)
}

type signalJob struct {
	ran chan struct{}
}

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return nil
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &signalJob{ran: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	service := newTestService(t, &fakeLock{}, job)

	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	select {
	case <-job.ran:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run")
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
