package libsql

import "sync"

// Future is the pending result of an async operation.
type Future[T any] struct {
	done chan struct{}
	// settle converts the raw outcome into the host value. It runs once, on
	// the first goroutine to await.
	settle func() (T, error)
	once   sync.Once
	val    T
	err    error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete is called exactly once by the worker.
func (f *Future[T]) complete(settle func() (T, error)) {
	f.settle = settle
	close(f.done)
}

// Done is closed once the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation finishes and returns its result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	f.once.Do(func() {
		f.val, f.err = f.settle()
		f.settle = nil
	})
	return f.val, f.err
}
