package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	tokens   []string
	unlocked []string
}

func (f *fakeLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return "", false, nil
	}
	f.held = true
	token := fmt.Sprintf("token-%d", len(f.tokens))
	f.tokens = append(f.tokens, token)
	return token, true, nil
}

func (f *fakeLocker) Unlock(ctx context.Context, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.unlocked = append(f.unlocked, token)
	return nil
}

func TestSchedulerRunsJobsWithoutOverlap(t *testing.T) {
	var inFlight int32
	var maxInFlight int32
	var runs int32

	s := New(nil)
	s.Register(Job{
		Name:     "test_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			current := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)

			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if current <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, current) {
					break
				}
			}

			// Дольше интервала: проверяем, что запуски не накладываются
			time.Sleep(25 * time.Millisecond)
			atomic.AddInt32(&runs, 1)
			return 1, nil
		},
	})

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))
	require.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	var okRuns int32

	s := New(nil)
	s.Register(Job{
		Name:     "failing_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			return 0, context.DeadlineExceeded
		},
	})
	s.Register(Job{
		Name:     "healthy_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&okRuns, 1)
			return 0, nil
		},
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	// Падающая задача не мешает здоровой выполняться
	require.GreaterOrEqual(t, atomic.LoadInt32(&okRuns), int32(2))
}

func TestSchedulerReleasesLockWithOwnToken(t *testing.T) {
	lock := &fakeLocker{}
	var runs int32

	s := New(lock)
	s.Register(Job{
		Name:     "locked_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&runs, 1)
			return 0, nil
		},
	})

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))

	// Каждый запуск снимает блокировку токеном своего же захвата
	lock.mu.Lock()
	defer lock.mu.Unlock()
	require.Equal(t, lock.tokens, lock.unlocked)
}

func TestSchedulerSkipsHeldLock(t *testing.T) {
	lock := &fakeLocker{held: true}
	var runs int32

	s := New(lock)
	s.Register(Job{
		Name:     "locked_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&runs, 1)
			return 0, nil
		},
	})

	s.Start()
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	require.Equal(t, int32(0), atomic.LoadInt32(&runs))
	lock.mu.Lock()
	defer lock.mu.Unlock()
	require.Empty(t, lock.unlocked)
}
