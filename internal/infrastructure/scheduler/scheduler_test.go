package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crm/invoicing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	denied   bool
	releases int
}

func (l *fakeLock) Acquire(ctx context.Context, jobName string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied {
		return nil, false
	}
	l.acquired = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.releases++
	}, true
}

func TestParseDailySchedule(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{name: "one am sweep", expr: "0 1 * * *", wantHour: 1, wantMinute: 0},
		{name: "two am dunning", expr: "0 2 * * *", wantHour: 2, wantMinute: 0},
		{name: "half past eleven", expr: "30 23 * * *", wantHour: 23, wantMinute: 30},
		{name: "too few fields", expr: "0 1 * *", wantErr: true},
		{name: "minute out of range", expr: "61 1 * * *", wantErr: true},
		{name: "hour out of range", expr: "0 24 * * *", wantErr: true},
		{name: "weekly schedule rejected", expr: "0 1 * * 1", wantErr: true},
		{name: "non-numeric minute", expr: "a 1 * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseDailySchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, hour)
			assert.Equal(t, tt.wantMinute, minute)
		})
	}
}

func newTestScheduler(lock JobLock, jobs ...Job) *Scheduler {
	return NewScheduler(config.SchedulerConfig{JobTimeout: time.Minute}, lock, zap.NewNop(), jobs...)
}

func TestScheduler_RunsDueJobOnce(t *testing.T) {
	lock := &fakeLock{}
	var runs int
	job := Job{Name: "test-job", Hour: 1, Minute: 0, Run: func(ctx context.Context, asOf time.Time) error {
		runs++
		return nil
	}}
	s := newTestScheduler(lock, job)

	due := time.Date(2026, 9, 1, 1, 0, 30, 0, time.UTC)
	s.checkAndRun(context.Background(), due)
	s.checkAndRun(context.Background(), due.Add(20*time.Second))

	assert.Equal(t, 1, runs, "a job must run once per day even when checked twice in its minute")
	assert.Equal(t, 1, lock.releases, "the lock is released after the run")
}

func TestScheduler_SkipsJobOutsideItsMinute(t *testing.T) {
	lock := &fakeLock{}
	var runs int
	job := Job{Name: "test-job", Hour: 1, Minute: 0, Run: func(ctx context.Context, asOf time.Time) error {
		runs++
		return nil
	}}
	s := newTestScheduler(lock, job)

	s.checkAndRun(context.Background(), time.Date(2026, 9, 1, 3, 15, 0, 0, time.UTC))

	assert.Zero(t, runs)
}

func TestScheduler_SkipsWhenLockHeldElsewhere(t *testing.T) {
	lock := &fakeLock{denied: true}
	var runs int
	job := Job{Name: "test-job", Hour: 1, Minute: 0, Run: func(ctx context.Context, asOf time.Time) error {
		runs++
		return nil
	}}
	s := newTestScheduler(lock, job)

	s.checkAndRun(context.Background(), time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC))

	assert.Zero(t, runs, "another instance holds the lock, this one must not run the job")
}

func TestScheduler_RunNow(t *testing.T) {
	lock := &fakeLock{}
	var gotAsOf time.Time
	job := Job{Name: "test-job", Hour: 1, Minute: 0, Run: func(ctx context.Context, asOf time.Time) error {
		gotAsOf = asOf
		return nil
	}}
	s := newTestScheduler(lock, job)

	asOf := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	require.NoError(t, s.RunNow(context.Background(), "test-job", asOf))
	assert.Equal(t, asOf, gotAsOf)

	assert.Error(t, s.RunNow(context.Background(), "no-such-job", asOf))
}
