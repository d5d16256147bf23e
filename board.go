package maa

// Board is the interface board definitions implement. A board maps its pin
// numbering to the physical identifiers the backends need, and declares
// whether a pin's registers can be reached through a memory mapping.
type Board interface {
	// Name of the board, used for error reporting.
	Name() string

	// PinMap lists all supported pins with their capabilities and physical
	// identifiers.
	PinMap() PinMap

	// GpioMmap returns the register layout for direct memory-mapped access
	// to the given sysfs GPIO number. Boards without register level access
	// for the pin return an error wrapping ErrUnsupported.
	GpioMmap(gpioPin int) (*MmapSpec, error)
}

// MmapSpec describes how to reach one GPIO pin through a mapped register
// page. All register offsets are relative to the start of the mapping and
// refer to 32 bit little endian registers.
type MmapSpec struct {
	Device string // memory device to map, e.g. /dev/gpiomem
	Base   int64  // page aligned offset of the register block within Device
	Size   int    // bytes to map

	FselReg   uint32 // function select register, holds the pin direction
	FselShift uint   // bit position of the pin's function field in FselReg
	SetReg    uint32 // write Bit here to drive the pin high
	ClearReg  uint32 // write Bit here to drive the pin low
	LevelReg  uint32 // Bit here reflects the sampled pin level
	Bit       uint32 // the pin's bit mask in SetReg/ClearReg/LevelReg
}
