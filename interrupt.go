package maa

// The interrupt watcher: one goroutine per armed GPIO pin, blocking on the
// pin's edge waiter and invoking the registered handler once per genuine
// transition. The handler always runs on the watcher goroutine, never on
// the caller's.

import (
	"sync"

	"go.uber.org/multierr"
)

// InterruptHandler is invoked with the argument supplied when the watch was
// armed. It runs on the watcher's goroutine; it must not call back into the
// owning pin context, as the context's lock is held while the watcher is
// being torn down.
type InterruptHandler func(arg interface{})

type watcher struct {
	fn     InterruptHandler
	arg    interface{}
	waiter edgeWaiter

	stop chan struct{}
	done chan struct{}

	mu  sync.Mutex
	err error
}

// startWatcher arms the waiter loop. It owns the waiter from here on and
// releases it when halted.
func startWatcher(waiter edgeWaiter, fn InterruptHandler, arg interface{}) *watcher {
	w := &watcher{
		fn:     fn,
		arg:    arg,
		waiter: waiter,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *watcher) run() {
	defer close(w.done)
	for {
		fired, err := w.waiter.waitEdge()
		if err != nil {
			// A failed wait terminates the watcher; the error is reported
			// on the next explicit halt rather than retried forever.
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}
		select {
		case <-w.stop:
			return
		default:
		}
		if fired {
			w.fn(w.arg)
		}
	}
}

// halt signals the goroutine, forces it out of its blocking wait and joins
// it. When halt returns no handler invocation is running or will ever run
// again, so the caller may immediately free anything the handler captured.
func (w *watcher) halt() error {
	close(w.stop)
	wakeErr := w.waiter.wake()
	<-w.done

	w.mu.Lock()
	runErr := w.err
	w.mu.Unlock()

	return multierr.Combine(runErr, wakeErr, w.waiter.release())
}
