package utils_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvision/fieldvision/internal/utils"
)

// TestWorkerPool_ExecutesJobs tests that submitted jobs all run.
func TestWorkerPool_ExecutesJobs(t *testing.T) {
	// Setup
	pool := utils.NewWorkerPool(4)

	var executed atomic.Int32
	var wg sync.WaitGroup

	// Execute
	for i := 0; i < 20; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			executed.Add(1)
		})
	}
	wg.Wait()
	pool.Shutdown()

	// Assert
	assert.Equal(t, int32(20), executed.Load())
}

// TestWorkerPool_TrySubmit tests that TrySubmit drops instead of blocking
// when every worker is busy and the queue is full.
func TestWorkerPool_TrySubmit(t *testing.T) {
	// Setup: one worker, parked on a job until released.
	pool := utils.NewWorkerPool(1)

	block := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(func() {
		close(started)
		<-block
	})
	<-started

	// Execute: fill the single-slot queue, then overflow it.
	require.True(t, pool.TrySubmit(func() {}))

	var dropped bool
	for i := 0; i < 8; i++ {
		if !pool.TrySubmit(func() {}) {
			dropped = true
			break
		}
	}

	// Assert
	assert.True(t, dropped, "a saturated pool should refuse jobs")

	close(block)
	pool.Shutdown()
}

// TestWorkerPool_ShutdownDrains tests that Shutdown waits for queued jobs.
func TestWorkerPool_ShutdownDrains(t *testing.T) {
	// Setup
	pool := utils.NewWorkerPool(2)

	var executed atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			executed.Add(1)
		})
	}

	// Execute
	pool.Shutdown()

	// Assert
	assert.Equal(t, int32(10), executed.Load())
}

// TestDedupe tests order-preserving slice deduplication.
func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, utils.Dedupe([]string{"a", "b", "a", "c", "b"}))
	assert.Nil(t, utils.Dedupe([]int(nil)))
}
