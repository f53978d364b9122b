package libsql

import (
	"context"
	"sync"
)

// Loop delivers future results on a single goroutine, the one running Run.
// Host code that is not safe for concurrent use keeps all its callbacks on
// that goroutine.
type Loop struct {
	tasks    chan func()
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop. Nothing is delivered until Run is called.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		stop:  make(chan struct{}),
	}
}

// Run executes callbacks until Stop is called or ctx ends. The loop is
// stopped once Run returns, so pending Then calls give up.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop makes Run return. Callbacks not yet delivered are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stop:
	}
}

// Then calls cb with the future's result on the loop goroutine once it
// settles. The host value is built there too.
func Then[T any](l *Loop, f *Future[T], cb func(T, error)) {
	go func() {
		select {
		case <-f.Done():
		case <-l.stop:
			return
		}
		l.post(func() { cb(f.Await()) })
	}()
}
