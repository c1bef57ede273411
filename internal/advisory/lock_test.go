package advisory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ganot/feeflow/internal/advisory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ExclusivePerKey(t *testing.T) {
	l := advisory.NewLocker()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "25-97101")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak)
	require.False(t, l.Held("25-97101"))
}

func TestLocker_IndependentKeys(t *testing.T) {
	l := advisory.NewLocker()
	release, ok := l.TryLock("25-97101")
	require.True(t, ok)
	defer release()

	other, ok := l.TryLock("25-97102")
	require.True(t, ok)
	other()

	_, ok = l.TryLock("25-97101")
	require.False(t, ok)
}

func TestLocker_LockHonoursContext(t *testing.T) {
	l := advisory.NewLocker()
	release, ok := l.TryLock("25-97101")
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "25-97101")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	require.False(t, l.Held("25-97101"))
}
