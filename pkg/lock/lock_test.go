package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "lock:seats:t1:*")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInside)
}

func TestLocalLockerRespectsContext(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "k")
	require.ErrorIs(t, err, ErrNotAcquired)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLockerDistinctKeys(t *testing.T) {
	l := NewLocalLocker()

	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)

	r1()
	r1()
	r2()
}

func TestKeepAliveRefreshesUntilStopped(t *testing.T) {
	var calls int32
	stop := keepAlive("k", 2*time.Millisecond, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, time.Millisecond)

	stop()
	stop()
	after := atomic.LoadInt32(&calls)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestKeepAliveStopsWhenKeyIsLost(t *testing.T) {
	var calls int32
	stop := keepAlive("k", 2*time.Millisecond, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	})
	defer stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestKeepAliveRetriesAfterErrors(t *testing.T) {
	var calls int32
	stop := keepAlive("k", 2*time.Millisecond, func(ctx context.Context) (bool, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return false, errors.New("connection reset")
		}
		return true, nil
	})
	defer stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, time.Millisecond)
}
