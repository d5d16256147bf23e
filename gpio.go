package maa

// The GPIO pin context. A Gpio is bound to one backend at a time — the
// sysfs driver by default, the memory-mapped driver after UseMmap(true) —
// and dispatches reads, writes, direction and mode changes through it.
//
// A Gpio must not be used after Close returns; the behaviour of a closed
// handle is undefined. Where detection costs nothing the methods return
// ErrClosed instead of touching released resources, but callers must not
// rely on that.

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// gpioBackend is the boundary between the pin context and the two drivers.
type gpioBackend interface {
	setDirection(dir Direction) error
	setMode(mode Mode) error
	read() (int, error)
	write(value int) error
}

type Gpio struct {
	mu sync.Mutex

	pin     int // board pin number, -1 on the raw init path
	gpioPin int // GPIO number as listed in sysfs

	dir     Direction
	edge    Edge
	owner   bool
	useMmap bool
	closed  bool

	sysfs   *sysfsGpio
	mm      *mmapGpio
	watcher *watcher
}

// InitGpio initialises a GPIO context for a board pin number, resolving it
// through the installed board definition. The context owns the pin and will
// unexport it on Close unless SetOwner says otherwise.
func InitGpio(pin int) (*Gpio, error) {
	if board == nil {
		return nil, errors.Wrap(ErrUnsupported, "no board configured")
	}
	pd := board.PinMap().GetPin(pin)
	if pd == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "pin %d is not defined by board %s", pin, board.Name())
	}
	if !pd.HasCapability(CAP_INPUT) && !pd.HasCapability(CAP_OUTPUT) {
		return nil, errors.Wrapf(ErrInvalidArgument, "pin %d has no GPIO capability", pin)
	}

	g, _, e := newGpio(pin, pd.gpioLogical)
	if e != nil {
		return nil, e
	}
	g.owner = true
	return g, nil
}

// InitGpioRaw initialises a GPIO context directly from a sysfs GPIO number,
// bypassing the board mapping. If this call performed the export the
// context owns the pin; if the pin was already exported the context is
// treated as borrowing it and Close will leave it exported. Either default
// can be overridden with SetOwner.
func InitGpioRaw(gpioPin int) (*Gpio, error) {
	if gpioPin < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "GPIO number %d is negative", gpioPin)
	}
	g, exported, e := newGpio(-1, gpioPin)
	if e != nil {
		return nil, e
	}
	g.owner = exported
	return g, nil
}

func newGpio(pin, gpioPin int) (*Gpio, bool, error) {
	s, exported, e := newSysfsGpio(gpioPin)
	if e != nil {
		return nil, exported, e
	}
	// The kernel leaves a freshly exported pin as an input.
	return &Gpio{pin: pin, gpioPin: gpioPin, dir: IN, edge: EDGE_NONE, sysfs: s}, exported, nil
}

func (g *Gpio) backend() gpioBackend {
	if g.useMmap {
		return g.mm
	}
	return g.sysfs
}

// SetDirection configures the pin as an input or an output.
func (g *Gpio) SetDirection(dir Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if dir != IN && dir != OUT {
		return errors.Wrapf(ErrInvalidArgument, "direction %d is not valid", dir)
	}
	if e := g.backend().setDirection(dir); e != nil {
		return e
	}
	g.dir = dir
	return nil
}

// SetOutputMode sets the pin's drive mode. The pin must currently be an
// output.
func (g *Gpio) SetOutputMode(mode Mode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.dir != OUT {
		return errors.Wrap(ErrNotPermitted, "drive mode requires direction out")
	}
	if mode.String() == "" {
		return errors.Wrapf(ErrInvalidArgument, "mode %d is not valid", mode)
	}
	return g.backend().setMode(mode)
}

// Read samples the pin and returns HIGH or LOW. Reading is legal in either
// direction.
func (g *Gpio) Read() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, ErrClosed
	}
	return g.backend().read()
}

// Write drives the pin. Zero drives it low, any other value high. The pin
// must currently be an output.
func (g *Gpio) Write(value int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.dir != OUT {
		return errors.Wrapf(ErrNotPermitted, "cannot write GPIO %d while direction is in", g.gpioPin)
	}
	return g.backend().write(value)
}

// SetEdge configures which transitions the kernel reports for this pin.
// Setting EDGE_NONE while a watch is armed tears the watcher down, exactly
// like Unwatch. Edge detection is only available on the sysfs backend.
func (g *Gpio) SetEdge(edge Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if edge.String() == "" {
		return errors.Wrapf(ErrInvalidArgument, "edge %d is not valid", edge)
	}
	if g.useMmap {
		return errors.Wrap(ErrUnsupported, "edge detection requires the sysfs backend")
	}
	if g.watcher != nil && edge == EDGE_NONE {
		return g.unwatchLocked()
	}
	if e := g.sysfs.setEdge(edge); e != nil {
		return e
	}
	g.edge = edge
	return nil
}

// Watch arms an interrupt on the pin: the edge mode is written to the
// kernel and a watcher goroutine starts blocking for transitions, invoking
// fn(arg) exactly once per edge. Arming while a previous watch is active
// first tears the old watcher down completely, so handlers from the old
// configuration can no longer fire. Watch fails while the memory-mapped
// backend is active; only the sysfs backend supports edge detection.
func (g *Gpio) Watch(edge Edge, fn InterruptHandler, arg interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if edge == EDGE_NONE {
		return errors.Wrap(ErrInvalidArgument, "cannot watch EDGE_NONE, use Unwatch to disarm")
	}
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "nil interrupt handler")
	}
	if g.useMmap {
		return errors.Wrap(ErrUnsupported, "edge detection requires the sysfs backend")
	}

	if g.watcher != nil {
		if e := g.unwatchLocked(); e != nil {
			return e
		}
	}

	if e := g.sysfs.setEdge(edge); e != nil {
		return e
	}
	g.edge = edge

	waiter, e := newEdgeWaiter(g.sysfs)
	if e != nil {
		return e
	}
	g.watcher = startWatcher(waiter, fn, arg)
	return nil
}

// Unwatch stops the interrupt watcher and resets the edge mode to
// EDGE_NONE. It blocks until the watcher goroutine has fully terminated:
// once Unwatch returns, no handler invocation is in flight and none will
// follow, so the caller may immediately release anything the handler used.
// Unwatch on a pin with no armed watch only resets the edge mode.
func (g *Gpio) Unwatch() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	return g.unwatchLocked()
}

func (g *Gpio) unwatchLocked() error {
	var err error
	if g.watcher != nil {
		err = g.watcher.halt()
		g.watcher = nil
	}
	err = multierr.Append(err, g.sysfs.setEdge(EDGE_NONE))
	if err == nil {
		g.edge = EDGE_NONE
	}
	return err
}

// SetOwner flips whether closing this context releases the underlying pin.
// Use it when several contexts reference the same physical pin and only one
// should unexport it on teardown.
func (g *Gpio) SetOwner(owner bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.owner = owner
	return nil
}

// UseMmap switches the context between the sysfs backend and direct
// register access. Enabling fails with ErrUnsupported when the board has no
// register map for the pin, leaving the context on its previous backend
// with no state disturbed. The backend cannot be switched while a watch is
// armed.
func (g *Gpio) UseMmap(enable bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.watcher != nil {
		return errors.Wrap(ErrNotPermitted, "cannot switch backend while a watch is armed")
	}

	if !enable {
		var err error
		if g.mm != nil {
			err = g.mm.close()
			g.mm = nil
		}
		g.useMmap = false
		return err
	}

	if g.useMmap {
		return nil
	}
	if board == nil {
		return errors.Wrap(ErrUnsupported, "no board configured")
	}
	spec, e := board.GpioMmap(g.gpioPin)
	if e != nil {
		return e
	}
	mm, e := newMmapGpio(spec)
	if e != nil {
		return e
	}
	g.mm = mm
	g.useMmap = true
	return nil
}

// Close tears the context down: it stops any armed watcher, releases the
// mapped register page if one is held, and unexports the pin if this
// context owns it. The handle is invalid afterwards and must not be reused;
// a second Close is undefined by contract, though it currently reports
// ErrClosed.
func (g *Gpio) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}

	var err error
	if g.watcher != nil {
		err = g.watcher.halt()
		g.watcher = nil
		err = multierr.Append(err, g.sysfs.setEdge(EDGE_NONE))
	}
	if g.mm != nil {
		err = multierr.Append(err, g.mm.close())
		g.mm = nil
	}
	err = multierr.Append(err, g.sysfs.close(g.owner))
	g.closed = true
	return err
}
