package maa

// Definitions relating to pins.

// Direction of a GPIO pin.
type Direction int

const (
	OUT Direction = iota // output, a Mode can also be set
	IN                   // input
)

// String returns the direction as the kernel expects it in the sysfs
// direction file.
func (d Direction) String() string {
	switch d {
	case OUT:
		return "out"
	case IN:
		return "in"
	}
	return ""
}

// Mode is the output drive mode of a GPIO pin. Only meaningful while the
// direction is OUT.
type Mode int

const (
	STRONG   Mode = iota // default, strong high and low
	PULLUP               // resistive high
	PULLDOWN             // resistive low
	HIZ                  // high impedance
)

func (m Mode) String() string {
	switch m {
	case STRONG:
		return "strong"
	case PULLUP:
		return "pullup"
	case PULLDOWN:
		return "pulldown"
	case HIZ:
		return "hiz"
	}
	return ""
}

// Edge selects which voltage transitions trigger an interrupt.
type Edge int

const (
	EDGE_NONE    Edge = iota // no interrupt
	EDGE_BOTH                // interrupt on rising and falling
	EDGE_RISING              // interrupt on rising only
	EDGE_FALLING             // interrupt on falling only
)

// String returns the edge mode as the kernel expects it in the sysfs edge
// file.
func (e Edge) String() string {
	switch e {
	case EDGE_NONE:
		return "none"
	case EDGE_BOTH:
		return "both"
	case EDGE_RISING:
		return "rising"
	case EDGE_FALLING:
		return "falling"
	}
	return ""
}

// Convenience constants for digital pin values.
const (
	HIGH = 1
	LOW  = 0
)

// PinDef describes a board pin and everything needed to open it on a
// backend: the kernel GPIO number for sysfs access and, for PWM capable
// pins, the sysfs PWM chip and channel.
type PinDef struct {
	pin          int           // the pin, also the map key of PinMap
	names        []string      // hardware names of the pin, board specific
	capabilities CapabilitySet // set of capabilities of the pin
	gpioLogical  int           // GPIO number as listed in sysfs
	pwmChip      int           // sysfs PWM chip, -1 if not PWM capable
	pwmChannel   int           // channel on pwmChip, -1 if not PWM capable
}

// PinMap maps board pin numbers to their definitions.
type PinMap map[int]*PinDef

// Add a pin to the map.
func (m PinMap) add(pin int, names []string, caps CapabilitySet, gpioLogical int) *PinDef {
	pd := &PinDef{pin: pin, names: names, capabilities: caps, gpioLogical: gpioLogical, pwmChip: -1, pwmChannel: -1}
	m[pin] = pd
	return pd
}

// pwm records the sysfs PWM chip and channel backing this pin.
func (pd *PinDef) pwm(chip, channel int) *PinDef {
	pd.pwmChip = chip
	pd.pwmChannel = channel
	return pd
}

// GetPin returns a pin's definition, or nil if that pin is not defined in
// the map.
func (m PinMap) GetPin(pin int) *PinDef {
	return m[pin]
}

// Provide a string representation of a pin and the capabilities it supports.
func (pd *PinDef) String() string {
	s := ""
	if len(pd.names) > 0 {
		s = pd.names[0]
	}
	return s + "  cap:" + pd.capabilities.String()
}

// HasCapability determines if a pin has a particular capability.
func (pd *PinDef) HasCapability(cap Capability) bool {
	for _, v := range pd.capabilities {
		if v == cap {
			return true
		}
	}
	return false
}
