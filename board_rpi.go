package maa

// Board definition for Raspberry Pi models based on the BCM283x family.
//
// GPIO registers are reached through /dev/gpiomem, which the kernel exposes
// already offset to the GPIO block, so no peripheral base address is needed
// and no elevated privilege beyond the gpio group. Register layout:
// GPFSEL0 at 0x00 (3 bits per pin, 10 pins per register), GPSET0 at 0x1C,
// GPCLR0 at 0x28 and GPLEV0 at 0x34, each bank covering 32 pins.

import (
	"github.com/pkg/errors"
)

const (
	piMemDevice = "/dev/gpiomem"
	piBlockSize = 4 * 1024

	piFselBase  = 0x00
	piSetBase   = 0x1C
	piClearBase = 0x28
	piLevelBase = 0x34

	// BCM283x exposes GPIO 0..53.
	piMaxGpio = 53
)

type RaspberryPiBoard struct {
	pins PinMap
}

func NewRaspberryPiBoard() *RaspberryPiBoard {
	gpioProfile := CapabilitySet{
		CAP_INPUT,
		CAP_OUTPUT,
		CAP_INPUT_PULLUP,
		CAP_INPUT_PULLDOWN,
	}
	pwmProfile := CapabilitySet{
		CAP_INPUT,
		CAP_OUTPUT,
		CAP_INPUT_PULLUP,
		CAP_INPUT_PULLDOWN,
		CAP_PWM,
	}

	// The pins are numbered as they are on the header. Entries are only
	// present for positions wired to a usable GPIO; power, ground and bus
	// reserved positions are left out of the map.
	m := make(PinMap)
	m.add(7, []string{"GPIO4"}, gpioProfile, 4)
	m.add(11, []string{"GPIO17"}, gpioProfile, 17)
	m.add(12, []string{"GPIO18", "PWM0"}, pwmProfile, 18).pwm(0, 0)
	m.add(13, []string{"GPIO27"}, gpioProfile, 27)
	m.add(15, []string{"GPIO22"}, gpioProfile, 22)
	m.add(16, []string{"GPIO23"}, gpioProfile, 23)
	m.add(18, []string{"GPIO24"}, gpioProfile, 24)
	m.add(22, []string{"GPIO25"}, gpioProfile, 25)

	return &RaspberryPiBoard{pins: m}
}

func (b *RaspberryPiBoard) Name() string {
	return "raspberrypi"
}

func (b *RaspberryPiBoard) PinMap() PinMap {
	return b.pins
}

func (b *RaspberryPiBoard) GpioMmap(gpioPin int) (*MmapSpec, error) {
	if gpioPin < 0 || gpioPin > piMaxGpio {
		return nil, errors.Wrapf(ErrInvalidArgument, "GPIO %d is outside the BCM283x range", gpioPin)
	}
	return bcmMmapSpec(piMemDevice, gpioPin), nil
}

// bcmMmapSpec computes the BCM283x register layout for a GPIO number.
func bcmMmapSpec(device string, gpioPin int) *MmapSpec {
	bank := uint32(gpioPin / 32 * 4)
	return &MmapSpec{
		Device:    device,
		Base:      0,
		Size:      piBlockSize,
		FselReg:   piFselBase + uint32(gpioPin/10*4),
		FselShift: uint(gpioPin % 10 * 3),
		SetReg:    piSetBase + bank,
		ClearReg:  piClearBase + bank,
		LevelReg:  piLevelBase + bank,
		Bit:       1 << uint(gpioPin%32),
	}
}
