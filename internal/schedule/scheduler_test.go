package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(spacing time.Duration) *Scheduler {
	return New(spacing, zap.NewNop())
}

func TestScheduleRunsTask(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	ran := false
	err := s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSchedulePropagatesTaskError(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	boom := errors.New("channel create failed")
	err := s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTaskErrorDoesNotStopQueue(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	var wg sync.WaitGroup
	var secondRan atomic.Bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			return errors.New("first task fails")
		})
	}()
	go func() {
		defer wg.Done()
		// Give the failing task a head start in the queue.
		time.Sleep(10 * time.Millisecond)
		err := s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			secondRan.Store(true)
			return nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()
	assert.True(t, secondRan.Load())
}

func TestPanicRecovered(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	err := s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// Scheduler still usable afterwards.
	assert.NoError(t, s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
		return nil
	}))
}

func TestPerTenantMutualExclusion(t *testing.T) {
	s := newTestScheduler(time.Millisecond)
	defer s.Stop()

	const tasks = 20
	var inFlight int32
	var maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight),
		"two tasks for the same tenant must never execute concurrently")
}

func TestFIFOWithinTenant(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	const tasks = 10
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Stagger enqueues so arrival order is deterministic.
			time.Sleep(time.Duration(i) * 5 * time.Millisecond)
			_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	require.Len(t, order, tasks)
	for i := 0; i < tasks; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestTenantsRunInParallel(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	release := make(chan struct{})
	blocked := make(chan struct{})

	go func() {
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	// tenant-b must not wait behind tenant-a's blocked task.
	done := make(chan struct{})
	go func() {
		_ = s.Schedule(context.Background(), "tenant-b", func(ctx context.Context) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tenant-b task blocked behind tenant-a")
	}
	close(release)
}

func TestPendingCount(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	assert.Equal(t, 0, s.PendingCount("tenant-a"))

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// One executing task counts as pending.
	assert.Equal(t, 1, s.PendingCount("tenant-a"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error { return nil })
	}()

	require.Eventually(t, func() bool {
		return s.PendingCount("tenant-a") == 2
	}, time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()

	require.Eventually(t, func() bool {
		return s.PendingCount("tenant-a") == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDrainWaitsForAllTenants(t *testing.T) {
	s := newTestScheduler(time.Millisecond)
	defer s.Stop()

	var done atomic.Int32
	var wg sync.WaitGroup
	for _, tenant := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(tenant string) {
				defer wg.Done()
				_ = s.Schedule(context.Background(), tenant, func(ctx context.Context) error {
					time.Sleep(2 * time.Millisecond)
					done.Add(1)
					return nil
				})
			}(tenant)
		}
	}

	// Let the enqueues land before draining.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Drain(ctx))

	assert.Equal(t, int32(9), done.Load())
	for _, tenant := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		assert.Equal(t, 0, s.PendingCount(tenant))
	}
	wg.Wait()
}

func TestDrainTimeout(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Drain(ctx), context.DeadlineExceeded)
	close(release)
}

func TestWaiterContextExpiry(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = s.Schedule(context.Background(), "tenant-a", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var ran atomic.Bool
	err := s.Schedule(ctx, "tenant-a", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned task still runs in order.
	close(release)
	require.Eventually(t, func() bool { return ran.Load() }, time.Second, 5*time.Millisecond)
}
