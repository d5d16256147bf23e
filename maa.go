/*
	Package maa provides access to GPIO and PWM peripherals on single-board
	computers through a uniform, board-agnostic interface. Pins are addressed
	by their board-level number and resolved through a board definition to
	either the kernel sysfs backend or, where the board supports it, direct
	memory-mapped register access.
*/
package maa

import (
	"strings"

	"github.com/pkg/errors"
)

// Sentinel errors returned (possibly wrapped with context) by all public
// operations. Use errors.Is to classify a failure; anything else is an
// underlying I/O error from the platform.
var (
	// ErrInvalidArgument indicates an out-of-range pin number or a value
	// that is malformed for the current direction or mode.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported indicates the board or active backend cannot perform
	// the requested operation, e.g. memory-mapped access on a board without
	// a register map, or edge detection while memory-mapped mode is active.
	ErrUnsupported = errors.New("not supported by board or backend")

	// ErrNotPermitted indicates the operation is not legal in the context's
	// current state, e.g. writing a value while the direction is input.
	ErrNotPermitted = errors.New("operation not permitted in current state")

	// ErrClosed indicates the handle has already been closed. Using a closed
	// handle is undefined by contract; where detection is cheap the library
	// fails with this error rather than touching released resources.
	ErrClosed = errors.New("handle is closed")
)

// The board definition all pin contexts resolve against.
var board Board

// init attempts to determine the board from the environment, so that the
// consumer of the library does not generally have to worry about it. If the
// board cannot be determined, it is left unset and SetBoard must be called.
func init() {
	DetectBoard()
}

// DetectBoard inspects /proc/cpuinfo and installs a board definition if the
// hardware is recognised. It leaves the current board untouched otherwise.
func DetectBoard() {
	hardware := CpuInfo("Hardware")
	if strings.Contains(hardware, "BCM27") || strings.Contains(hardware, "BCM28") {
		SetBoard(NewRaspberryPiBoard())
	}
}

// SetBoard installs the board definition used to resolve pin numbers.
// It should be called before any pins are initialised.
func SetBoard(b Board) {
	board = b
}

// GetBoard returns the currently installed board definition, or nil.
func GetBoard() Board {
	return board
}

// GetPin returns the board pin number for a canonical pin name, e.g.
// GetPin("GPIO18") on a Raspberry Pi. Search is case sensitive. This is a
// convenience for init-time lookup and should not be relied on for speed.
func GetPin(name string) (int, error) {
	if board == nil {
		return 0, errors.Wrap(ErrUnsupported, "no board configured")
	}
	for pin, pd := range board.PinMap() {
		for _, n := range pd.names {
			if n == name {
				return pin, nil
			}
		}
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "no pin called %q on board %s", name, board.Name())
}
