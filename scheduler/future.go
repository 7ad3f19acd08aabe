// Package scheduler implements the future/continuation abstraction of §5:
// thenInWorkerThread, thenInMainThread, catchInMainThread, and an all(...)
// join, over two logical execution domains (main: single-threaded, worker:
// a pool). A single worker is a valid implementation for tests (§9).
package scheduler

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Future carries a value that will become available once the task that
// produces it completes, plus whatever continuations were chained onto it.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves and returns its value/error. Worker
// tasks may call Wait (§5: "A worker task may block... but otherwise runs
// to completion"); main-thread tasks must never call it (§5: "A main-thread
// task never blocks; it yields by returning a new future").
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Done reports whether the future has resolved, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Scheduler owns the worker pool and the main-thread continuation queue.
type Scheduler struct {
	workSem chan struct{} // bounds concurrent worker goroutines
	mainQ   chan func()
}

// NewScheduler creates a scheduler with the given worker concurrency and
// main-queue depth. workers <= 0 means unbounded (goroutine per task).
func NewScheduler(workers, mainQueueDepth int) *Scheduler {
	s := &Scheduler{mainQ: make(chan func(), mainQueueDepth)}
	if workers > 0 {
		s.workSem = make(chan struct{}, workers)
	}
	return s
}

func (s *Scheduler) acquireWorker() {
	if s.workSem != nil {
		s.workSem <- struct{}{}
	}
}

func (s *Scheduler) releaseWorker() {
	if s.workSem != nil {
		<-s.workSem
	}
}

// InWorker runs fn on a worker goroutine, matching the teacher's
// "runs asynchronously" futures. Returned future resolves once fn returns.
func InWorker[T any](s *Scheduler, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		s.acquireWorker()
		defer s.releaseWorker()
		v, err := fn()
		f.resolve(v, err)
	}()
	return f
}

// Resolved returns an already-completed future, used to seed chains from a
// synchronously-available value (e.g. a cache hit).
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

// ThenInWorker chains fn to run on a worker thread once in resolves
// successfully; an error in `in` propagates without invoking fn.
func ThenInWorker[T, R any](s *Scheduler, in *Future[T], fn func(T) (R, error)) *Future[R] {
	out := newFuture[R]()
	go func() {
		v, err := in.Wait()
		if err != nil {
			var zero R
			out.resolve(zero, err)
			return
		}
		s.acquireWorker()
		defer s.releaseWorker()
		r, err := fn(v)
		out.resolve(r, err)
	}()
	return out
}

// ThenInMain chains fn to run on the main thread's continuation queue once
// in resolves successfully. The caller must periodically invoke DrainMain
// for queued continuations to actually execute — per §5, "the frame
// function drains a bounded number of queued main-thread continuations
// before running the traversal."
func ThenInMain[T, R any](s *Scheduler, in *Future[T], fn func(T) (R, error)) *Future[R] {
	out := newFuture[R]()
	go func() {
		v, err := in.Wait()
		if err != nil {
			var zero R
			out.resolve(zero, err)
			return
		}
		s.mainQ <- func() {
			r, err := fn(v)
			out.resolve(r, err)
		}
	}()
	return out
}

// CatchInMain runs handler on the main thread only if in resolves with an
// error, and passes the error through to the returned future either way
// (so a subsequent ThenInMain/ThenInWorker chain still observes it).
func CatchInMain[T any](s *Scheduler, in *Future[T], handler func(error)) *Future[T] {
	out := newFuture[T]()
	go func() {
		v, err := in.Wait()
		if err == nil {
			out.resolve(v, nil)
			return
		}
		s.mainQ <- func() {
			handler(err)
			out.resolve(v, err)
		}
	}()
	return out
}

// DrainMain runs up to max queued main-thread continuations (max<=0 means
// drain everything currently queued) without blocking for more to arrive.
func (s *Scheduler) DrainMain(max int) int {
	n := 0
	for max <= 0 || n < max {
		select {
		case task := <-s.mainQ:
			task()
			n++
		default:
			return n
		}
	}
	return n
}

// All joins a set of futures, completing once every one of them has,
// preserving input order in the result slice. Implemented over errgroup
// the way the teacher's concurrent helpers lean on golang.org/x/sync rather
// than hand-rolled WaitGroup bookkeeping.
func All[T any](futures []*Future[T]) *Future[[]T] {
	out := newFuture[[]T]()
	go func() {
		results := make([]T, len(futures))
		var g errgroup.Group
		for i, fut := range futures {
			i, fut := i, fut
			g.Go(func() error {
				v, err := fut.Wait()
				results[i] = v
				return err
			})
		}
		err := g.Wait()
		out.resolve(results, err)
	}()
	return out
}
