package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/emekadefirst/learnhub-backend/internal/subscriptions"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type stubLock struct {
	acquired bool
	denied   bool
	released int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *stubLock) Release(context.Context) error {
	l.released++
	return nil
}

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func TestRunCycle_ExecutesAllJobs(t *testing.T) {
	first := &countingJob{name: "first"}
	second := &countingJob{name: "second", err: errors.New("boom")}
	third := &countingJob{name: "third"}
	lock := &stubLock{}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, second, third),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}

	// one job failing does not stop the rest
	if first.runs != 1 || second.runs != 1 || third.runs != 1 {
		t.Fatalf("runs = %d/%d/%d", first.runs, second.runs, third.runs)
	}
	if lock.released != 1 {
		t.Fatalf("lock released %d times", lock.released)
	}
}

func TestRunCycle_SkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "only"}
	lock := &stubLock{denied: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle failed: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran while lock was held elsewhere")
	}
	if lock.released != 0 {
		t.Fatalf("lock released without being held")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	job := &countingJob{name: "only"}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &stubLock{},
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if job.runs == 0 {
		t.Fatal("job never ran")
	}
}

type stubSweeper struct {
	result *subscriptions.SweepResult
	err    error
	limit  int
}

func (s *stubSweeper) ExpireSweep(_ context.Context, limit int) (*subscriptions.SweepResult, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestExpireSweepJob(t *testing.T) {
	sweeper := &stubSweeper{result: &subscriptions.SweepResult{Scanned: 3, Canceled: 1, Expired: 2}}
	job, err := NewExpireSweepJob(testLogger(), sweeper, 500)
	if err != nil {
		t.Fatalf("NewExpireSweepJob failed: %v", err)
	}

	if job.Name() != "subscription_expire_sweep" {
		t.Fatalf("name = %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sweeper.limit != 500 {
		t.Fatalf("limit = %d", sweeper.limit)
	}

	sweeper.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to surface")
	}
}
