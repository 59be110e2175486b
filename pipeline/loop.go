package pipeline

import (
	"errors"
	"sync"
)

// ErrLoopClosed is returned by Loop.Do after Close.
var ErrLoopClosed = errors.New("loop closed")

// Loop runs functions on the goroutine that calls Run. Sinks backed by
// thread-bound libraries, such as a GUI toolkit, submit their work
// through it from pipeline goroutines.
type Loop struct {
	calls chan func()
	quit  chan struct{}
	once  sync.Once
}

// NewLoop creates a Loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{calls: make(chan func()), quit: make(chan struct{})}
}

// Run executes submitted functions one at a time until Close is called.
func (l *Loop) Run() {
	for {
		select {
		case f := <-l.calls:
			f()
		case <-l.quit:
			return
		}
	}
}

// Do runs f on the Run goroutine and waits for it to return.
func (l *Loop) Do(f func()) error {
	done := make(chan struct{})
	call := func() {
		defer close(done)
		f()
	}
	select {
	case l.calls <- call:
	case <-l.quit:
		return ErrLoopClosed
	}
	<-done
	return nil
}

// Close stops Run. It is safe to call more than once.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
}
