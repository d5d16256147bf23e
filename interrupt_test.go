package maa

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWaiter stands in for the epoll edge waiter; epoll cannot be armed on
// the regular files the scratch sysfs tree is made of. Edges are injected by
// sending on edges.
type fakeWaiter struct {
	edges    chan struct{}
	woken    chan struct{}
	wakeOnce sync.Once
	released atomic.Bool
	failWith error
}

func newFakeWaiter() *fakeWaiter {
	return &fakeWaiter{edges: make(chan struct{}), woken: make(chan struct{})}
}

func (f *fakeWaiter) waitEdge() (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	select {
	case <-f.edges:
		return true, nil
	case <-f.woken:
		return false, nil
	}
}

func (f *fakeWaiter) wake() error {
	f.wakeOnce.Do(func() { close(f.woken) })
	return nil
}

func (f *fakeWaiter) release() error {
	f.released.Store(true)
	return nil
}

// withFakeWaiters substitutes the wait primitive and returns a channel of
// the waiters handed out, in arming order.
func withFakeWaiters(t *testing.T, failWith error) chan *fakeWaiter {
	t.Helper()
	created := make(chan *fakeWaiter, 8)
	old := newEdgeWaiter
	newEdgeWaiter = func(s *sysfsGpio) (edgeWaiter, error) {
		f := newFakeWaiter()
		f.failWith = failWith
		created <- f
		return f, nil
	}
	t.Cleanup(func() { newEdgeWaiter = old })
	return created
}

func waitForArg(t *testing.T, calls chan interface{}) interface{} {
	t.Helper()
	select {
	case arg := <-calls:
		return arg
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
		return nil
	}
}

func assertNoCall(t *testing.T, calls chan interface{}) {
	t.Helper()
	select {
	case <-calls:
		t.Fatal("unexpected handler invocation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchInvokesHandlerWithArgument(t *testing.T) {
	dir := fakeGpioFS(t, 42)
	created := withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	calls := make(chan interface{}, 4)
	require.NoError(t, g.Watch(EDGE_RISING, func(arg interface{}) { calls <- arg }, "payload"))
	assert.Equal(t, "rising", readTestFile(t, filepath.Join(dir, "gpio42", "edge")))

	fw := <-created
	fw.edges <- struct{}{}
	assert.Equal(t, "payload", waitForArg(t, calls))
	assertNoCall(t, calls)

	require.NoError(t, g.Unwatch())
	assert.True(t, fw.released.Load(), "wait resources must be released after Unwatch")
	assert.Equal(t, "none", readTestFile(t, filepath.Join(dir, "gpio42", "edge")))
	assertNoCall(t, calls)
}

func TestUnwatchWaitsForRunningHandler(t *testing.T) {
	fakeGpioFS(t, 42)
	created := withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	entered := make(chan struct{})
	block := make(chan struct{})
	require.NoError(t, g.Watch(EDGE_BOTH, func(arg interface{}) {
		entered <- struct{}{}
		<-block
	}, nil))

	fw := <-created
	fw.edges <- struct{}{}
	<-entered

	unwatched := make(chan error, 1)
	go func() { unwatched <- g.Unwatch() }()

	select {
	case <-unwatched:
		t.Fatal("Unwatch returned while the handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	require.NoError(t, <-unwatched)
}

func TestRewatchTearsDownPreviousWatcher(t *testing.T) {
	fakeGpioFS(t, 42)
	created := withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	aCalls := make(chan interface{}, 4)
	require.NoError(t, g.Watch(EDGE_RISING, func(arg interface{}) { aCalls <- arg }, "a"))
	fwA := <-created

	bCalls := make(chan interface{}, 4)
	require.NoError(t, g.Watch(EDGE_FALLING, func(arg interface{}) { bCalls <- arg }, "b"))
	fwB := <-created

	assert.True(t, fwA.released.Load(), "re-arming must tear down the previous watcher")

	fwB.edges <- struct{}{}
	assert.Equal(t, "b", waitForArg(t, bCalls))
	assertNoCall(t, aCalls)

	require.NoError(t, g.Unwatch())
}

func TestWatchArgumentValidation(t *testing.T) {
	fakeGpioFS(t, 42)
	withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	e = g.Watch(EDGE_NONE, func(arg interface{}) {}, nil)
	assert.True(t, errors.Is(e, ErrInvalidArgument))

	e = g.Watch(EDGE_RISING, nil, nil)
	assert.True(t, errors.Is(e, ErrInvalidArgument))
}

func TestWatcherErrorSurfacesOnUnwatch(t *testing.T) {
	fakeGpioFS(t, 42)
	errBoom := errors.New("wait primitive failed")
	withFakeWaiters(t, errBoom)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	require.NoError(t, g.Watch(EDGE_RISING, func(arg interface{}) {}, nil))

	// The watcher goroutine terminates on the failed wait; the error is
	// reported at the next explicit disarm.
	e = g.Unwatch()
	assert.True(t, errors.Is(e, errBoom))
}

func TestCloseStopsWatcher(t *testing.T) {
	dir := fakeGpioFS(t, 42)
	created := withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)

	calls := make(chan interface{}, 4)
	require.NoError(t, g.Watch(EDGE_RISING, func(arg interface{}) { calls <- arg }, nil))
	fw := <-created

	require.NoError(t, g.Close())
	assert.True(t, fw.released.Load())
	assert.Equal(t, "none", readTestFile(t, filepath.Join(dir, "gpio42", "edge")))
	assertNoCall(t, calls)
}

func TestSetEdgeNoneDisarmsWatcher(t *testing.T) {
	fakeGpioFS(t, 42)
	created := withFakeWaiters(t, nil)

	g, e := InitGpioRaw(42)
	require.NoError(t, e)
	defer g.Close()

	require.NoError(t, g.Watch(EDGE_BOTH, func(arg interface{}) {}, nil))
	fw := <-created

	require.NoError(t, g.SetEdge(EDGE_NONE))
	assert.True(t, fw.released.Load())
}

func TestWatchUnderMmapFails(t *testing.T) {
	mem := fakeMemDevice(t)
	withBoard(t, &MockBoard{MemDevice: mem})
	fakeGpioFS(t, 10)

	g, e := InitGpio(0)
	require.NoError(t, e)
	defer g.Close()

	require.NoError(t, g.UseMmap(true))

	e = g.Watch(EDGE_RISING, func(arg interface{}) {}, nil)
	assert.True(t, errors.Is(e, ErrUnsupported))

	e = g.SetEdge(EDGE_RISING)
	assert.True(t, errors.Is(e, ErrUnsupported))
}
