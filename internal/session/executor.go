package session

import (
	"context"
	"sync"
)

// Executor moves blocking engine work off the coordination goroutine and
// brings the results back to it.
type Executor interface {
	// Submit runs work on a worker, in submission order, and then schedules
	// done (if non-nil) on the coordination goroutine.
	Submit(work func(), done func())
	// Post schedules fn on the coordination goroutine.
	Post(fn func())
}

type job struct {
	work func()
	done func()
}

// SerialExecutor is a single worker goroutine draining an unbounded FIFO.
// Submit never blocks, so the coordination goroutine can never deadlock
// against a worker that is waiting to post a completion.
type SerialExecutor struct {
	post func(func())

	mu    sync.Mutex
	queue []job
	wake  chan struct{}

	ctx context.Context
}

// NewSerialExecutor starts the worker. post must schedule its argument on
// the coordination goroutine. The worker exits when ctx is cancelled; jobs
// still queued at that point are discarded.
func NewSerialExecutor(ctx context.Context, post func(func())) *SerialExecutor {
	e := &SerialExecutor{
		post: post,
		wake: make(chan struct{}, 1),
		ctx:  ctx,
	}
	go e.loop()
	return e
}

func (e *SerialExecutor) Submit(work func(), done func()) {
	e.mu.Lock()
	e.queue = append(e.queue, job{work: work, done: done})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *SerialExecutor) Post(fn func()) {
	e.post(fn)
}

// loop is the single worker goroutine.
func (e *SerialExecutor) loop() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			select {
			case <-e.wake:
				continue
			case <-e.ctx.Done():
				return
			}
		}
		j := e.queue[0]
		e.queue[0] = job{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		j.work()
		if j.done != nil {
			e.post(j.done)
		}
	}
}
