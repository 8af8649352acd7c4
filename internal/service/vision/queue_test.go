package vision

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConcurrencyLimit(t *testing.T) {
	q := NewQueue(2)

	var (
		current int32
		peak    int32
		done    sync.WaitGroup
	)

	done.Add(5)
	for i := 0; i < 5; i++ {
		q.Enqueue(func() {
			defer done.Done()
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		})
	}

	done.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2), "more than two tasks ran concurrently")
	assert.Equal(t, 0, q.Pending())

	// drain completes asynchronously after the last task returns
	require.Eventually(t, func() bool { return q.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueueAllTasksRun(t *testing.T) {
	q := NewQueue(2)

	var ran int32
	var done sync.WaitGroup
	done.Add(10)
	for i := 0; i < 10; i++ {
		q.Enqueue(func() {
			defer done.Done()
			atomic.AddInt32(&ran, 1)
		})
	}

	done.Wait()
	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))
}

func TestQueueDefaultsConcurrency(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, 2, q.maxConcurrent)
}
