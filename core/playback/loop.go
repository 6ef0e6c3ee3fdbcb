package playback

import (
	"context"
	"time"
)

// Timer is a scheduled action that can still be stopped.
type Timer interface {
	Stop() bool
}

// Scheduler queues work onto the single goroutine that owns the reconciler.
type Scheduler interface {
	// Post queues fn; it reports false once the loop has stopped.
	Post(fn func()) bool
	// AfterFunc queues fn after d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is a cooperative task queue: every task runs to completion on the
// goroutine executing Run, in the order it was posted. Timers, websocket
// frames, player signals and control requests all reach the reconciler
// through it, so reconciler state is never touched concurrently.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// NewLoop creates a loop with a task buffer of the given size.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post 投递任务到事件循环
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc 延迟投递任务；回调仍在事件循环中执行
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Call posts fn and waits for it to finish. It returns ctx.Err() or
// ErrLoopStopped when fn could not run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}
