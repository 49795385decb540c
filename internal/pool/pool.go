// Package pool implements a fixed-size worker pool that multiplexes an
// unbounded stream of tasks over a bounded number of OS threads, with the
// guarantee that a task panic does not reduce the pool's effective size.
//
// The algorithmic shape — a shared FIFO job queue, a dedicated supervisor
// that replaces workers whose stack unwinds due to a panic, and a side
// channel used to coordinate worker lifecycle — is grounded on
// _examples/original_source's Rust thread_pool/shared_queue.rs and
// thread_pool/naive.rs. Rust's finalizer-on-drop mechanism (a scoped guard
// whose destructor fires on both normal return and unwinding, sending
// Shutdown or Panic accordingly) is translated here to Go's native
// recover()-in-deferred-function idiom.
package pool

import (
	"sync"

	"kvs/internal/logger"
)

// Task is an opaque, no-argument, no-return unit of work.
type Task func()

// exitReason is what a worker goroutine reports to the supervisor when it
// stops running tasks.
type exitReason int

const (
	exitShutdown exitReason = iota
	exitPanic
)

// item is one message on the shared queue: either a job to run, or a
// shutdown sentinel telling the worker that pops it to exit.
type item struct {
	job      Task
	shutdown bool
}

// Pool is a fixed-size worker pool. The zero value is not usable; create
// one with New.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []item

	size   int
	events chan exitReason
	done   chan struct{}
	once   sync.Once
}

// New creates a pool of n worker goroutines plus one supervisor goroutine
// and returns a handle. An n below 1 is treated as 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		size:   n,
		events: make(chan exitReason, n*2),
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.supervise()
	for i := 0; i < n; i++ {
		go p.runWorker()
	}
	return p
}

// Spawn enqueues a task. It never blocks (the queue is unbounded) and
// never returns an error once the pool has been constructed.
func (p *Pool) Spawn(task Task) {
	p.mu.Lock()
	p.queue = append(p.queue, item{job: task})
	p.cond.Signal()
	p.mu.Unlock()
}

// dequeue blocks until an item is available, pops it, and returns it. The
// mutex is held only long enough to pop one item; task execution always
// happens with it released.
func (p *Pool) dequeue() item {
	p.mu.Lock()
	for len(p.queue) == 0 {
		p.cond.Wait()
	}
	it := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()
	return it
}

// runWorker is the body of one worker goroutine. Its deferred recover()
// plays the role of the Rust design's scoped finalizer: whether it
// returns because it popped a shutdown sentinel or because a task panicked
// and the stack is unwinding, it reports exactly one exit event to the
// supervisor before exiting.
func (p *Pool) runWorker() {
	reason := exitPanic
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pool: worker recovered from panic: %v", r)
			reason = exitPanic
		}
		p.events <- reason
	}()

	for {
		it := p.dequeue()
		if it.shutdown {
			reason = exitShutdown
			return
		}
		it.job()
	}
}

// supervise receives exit events from workers. A Panic event is answered
// by spawning a fresh worker subscribed to the same queue and event
// channel, so the number of workers available to drain the queue returns
// to size. A Shutdown event decrements the active count; once every
// currently active worker has reported Shutdown, the supervisor closes
// done and exits.
func (p *Pool) supervise() {
	active := p.size
	for active > 0 {
		switch <-p.events {
		case exitPanic:
			go p.runWorker()
		case exitShutdown:
			active--
		}
	}
	close(p.done)
}

// Shutdown signals all workers to stop after draining any tasks already
// queued ahead of the shutdown sentinels, and waits for them (and the
// supervisor) to exit. It is safe to call more than once; only the first
// call has effect.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		for i := 0; i < p.size; i++ {
			p.queue = append(p.queue, item{shutdown: true})
		}
		p.cond.Broadcast()
		p.mu.Unlock()
		<-p.done
	})
}
