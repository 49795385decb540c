package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Shutdown()

	const n = 200
	var wg sync.WaitGroup
	var count int64
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Spawn(func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()
	if got := atomic.LoadInt64(&count); got != n {
		t.Fatalf("ran %d tasks, want %d", got, n)
	}
}

func TestSpawnDoesNotBlock(t *testing.T) {
	p := New(1)
	defer p.Shutdown()

	block := make(chan struct{})
	p.Spawn(func() { <-block })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Spawn(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Spawn blocked while the sole worker was busy")
	}
	close(block)
}

// TestPanicRecoveryReplacesWorker is spec.md's testable property 5: the
// pool's active-worker count returns to n within a bounded number of
// dispatched tasks after any worker panics.
func TestPanicRecoveryReplacesWorker(t *testing.T) {
	const n = 4
	p := New(n)
	defer p.Shutdown()

	p.Spawn(func() { panic("boom") })

	// Give the supervisor a moment to notice the panic and replace the
	// worker before we saturate the pool.
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	var active int64
	var maxActive int64
	var mu sync.Mutex
	const tasks = n * 20
	wg.Add(tasks)
	release := make(chan struct{})
	for i := 0; i < tasks; i++ {
		p.Spawn(func() {
			cur := atomic.AddInt64(&active, 1)
			mu.Lock()
			if cur > maxActive {
				maxActive = cur
			}
			mu.Unlock()
			<-release
			atomic.AddInt64(&active, -1)
			wg.Done()
		})
	}

	// Let tasks pile up against the (n-worker, already recovered) pool
	// briefly, then release them all.
	time.Sleep(50 * time.Millisecond)
	close(release)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool never drained tasks after a worker panic")
	}

	mu.Lock()
	got := maxActive
	mu.Unlock()
	if got != n {
		t.Fatalf("max concurrently active tasks = %d, want %d (pool should recover full size %d after the panic)", got, n, n)
	}
}

func TestShutdownWaitsForAllWorkers(t *testing.T) {
	p := New(3)
	var ran int64
	for i := 0; i < 30; i++ {
		p.Spawn(func() { atomic.AddInt64(&ran, 1) })
	}
	p.Shutdown()
	if got := atomic.LoadInt64(&ran); got != 30 {
		t.Fatalf("ran %d of 30 tasks before Shutdown returned", got)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	p := New(2)
	p.Shutdown()
	p.Shutdown()
}
