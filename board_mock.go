package maa

// A mock board used for unit testing. It resolves a fixed set of pins and,
// when MemDevice is set, pretends register access is available by pointing
// the memory-mapped backend at an ordinary file with the BCM283x layout.

import (
	"github.com/pkg/errors"
)

type MockBoard struct {
	// MemDevice is the file the memory-mapped backend will map. Leave it
	// empty to emulate a board without register level access.
	MemDevice string
}

func (b *MockBoard) Name() string {
	return "mock"
}

// Mock has a fixed set of hardcoded pins with different capabilities.
func (b *MockBoard) PinMap() PinMap {
	general := CapabilitySet{CAP_INPUT, CAP_OUTPUT}
	readonly := CapabilitySet{CAP_INPUT}
	pwm := CapabilitySet{CAP_INPUT, CAP_OUTPUT, CAP_PWM}

	m := make(PinMap)
	m.add(0, []string{"P0"}, general, 10)
	m.add(1, []string{"P1"}, general, 11)
	m.add(2, []string{"P2"}, general, 12)
	m.add(3, []string{"P3"}, general, 13)
	m.add(4, []string{"P4"}, general, 14)
	m.add(5, []string{"P5"}, general, 15)
	m.add(6, []string{"P6"}, readonly, 16)
	m.add(7, []string{"P7"}, pwm, 17).pwm(0, 0)
	return m
}

func (b *MockBoard) GpioMmap(gpioPin int) (*MmapSpec, error) {
	if b.MemDevice == "" {
		return nil, errors.Wrap(ErrUnsupported, "mock board has no memory device")
	}
	return bcmMmapSpec(b.MemDevice, gpioPin), nil
}
