package maa

// The PWM pin context, driven through the kernel PWM class. A channel is
// exported under its chip directory, after which period and duty_cycle are
// text files holding nanoseconds and enable holds 0 or 1. All caller-facing
// units — seconds, milliseconds, microseconds, duty percentage — are
// converted to and from nanoseconds here; the quantisation of a round trip
// is therefore one nanosecond.
//
// Like Gpio, a Pwm must not be used after Close returns.

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type Pwm struct {
	mu sync.Mutex

	pin     int // board pin number, -1 on the raw init path
	chip    int // sysfs PWM chip
	channel int // channel on the chip

	chipPath string
	basePath string

	owner  bool
	closed bool
}

// InitPwm initialises a PWM context for a board pin number. The pin must
// carry the PWM capability on the installed board.
func InitPwm(pin int) (*Pwm, error) {
	if board == nil {
		return nil, errors.Wrap(ErrUnsupported, "no board configured")
	}
	pd := board.PinMap().GetPin(pin)
	if pd == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "pin %d is not defined by board %s", pin, board.Name())
	}
	if !pd.HasCapability(CAP_PWM) {
		return nil, errors.Wrapf(ErrInvalidArgument, "pin %d has no PWM capability", pin)
	}

	p, _, e := newPwm(pin, pd.pwmChip, pd.pwmChannel)
	if e != nil {
		return nil, e
	}
	p.owner = true
	return p, nil
}

// InitPwmRaw initialises a PWM context directly from a sysfs chip and
// channel number, bypassing the board mapping. Ownership defaults the same
// way as InitGpioRaw: the context owns the channel only if this call
// exported it.
func InitPwmRaw(chip, channel int) (*Pwm, error) {
	if chip < 0 || channel < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "PWM chip %d channel %d out of range", chip, channel)
	}
	p, exported, e := newPwm(-1, chip, channel)
	if e != nil {
		return nil, e
	}
	p.owner = exported
	return p, nil
}

func newPwm(pin, chip, channel int) (*Pwm, bool, error) {
	p := &Pwm{
		pin:      pin,
		chip:     chip,
		channel:  channel,
		chipPath: fmt.Sprintf("%s/pwmchip%d", sysfsPwmPath, chip),
	}
	p.basePath = fmt.Sprintf("%s/pwm%d", p.chipPath, channel)

	exported := false
	if _, e := os.Stat(p.basePath); os.IsNotExist(e) {
		if e := writeStringToFile(p.chipPath+"/export", strconv.Itoa(channel)); e != nil {
			return nil, false, e
		}
		exported = true
	}
	return p, exported, nil
}

// Write sets the duty cycle as a percentage of the configured period.
// Values outside [0.0, 1.0] are clamped, not rejected. The period must have
// been configured first.
func (p *Pwm) Write(percentage float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	// NaN compares false against both bounds, so clamp it explicitly.
	if math.IsNaN(percentage) || percentage < 0.0 {
		percentage = 0.0
	} else if percentage > 1.0 {
		percentage = 1.0
	}

	period, e := readInt64FromFile(p.basePath + "/period")
	if e != nil {
		return e
	}
	if period <= 0 {
		return errors.Wrap(ErrNotPermitted, "period must be configured before writing a duty cycle")
	}
	duty := int64(percentage * float64(period))
	return writeStringToFile(p.basePath+"/duty_cycle", strconv.FormatInt(duty, 10))
}

// Read returns the current duty cycle as a percentage of the period, 0.0
// when no period is configured.
func (p *Pwm) Read() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}

	period, e := readInt64FromFile(p.basePath + "/period")
	if e != nil {
		return 0, e
	}
	if period <= 0 {
		return 0, nil
	}
	duty, e := readInt64FromFile(p.basePath + "/duty_cycle")
	if e != nil {
		return 0, e
	}
	return float64(duty) / float64(period), nil
}

// Period returns the configured period in seconds.
func (p *Pwm) Period() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	ns, e := readInt64FromFile(p.basePath + "/period")
	if e != nil {
		return 0, e
	}
	return float64(ns) / 1e9, nil
}

// SetPeriod sets the period from seconds, rounded to whole nanoseconds.
func (p *Pwm) SetPeriod(seconds float64) error {
	return p.setPeriodNs(int64(math.Round(seconds * 1e9)))
}

// SetPeriodMs sets the period in milliseconds.
func (p *Pwm) SetPeriodMs(ms int) error {
	return p.setPeriodNs(int64(ms) * 1e6)
}

// SetPeriodUs sets the period in microseconds.
func (p *Pwm) SetPeriodUs(us int) error {
	return p.setPeriodNs(int64(us) * 1e3)
}

func (p *Pwm) setPeriodNs(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if ns <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "period %dns is not positive", ns)
	}
	return writeStringToFile(p.basePath+"/period", strconv.FormatInt(ns, 10))
}

// SetPulsewidth sets the pulse width (the time the output is high within
// each period) from seconds, rounded to whole nanoseconds.
func (p *Pwm) SetPulsewidth(seconds float64) error {
	return p.setPulsewidthNs(int64(math.Round(seconds * 1e9)))
}

// SetPulsewidthMs sets the pulse width in milliseconds.
func (p *Pwm) SetPulsewidthMs(ms int) error {
	return p.setPulsewidthNs(int64(ms) * 1e6)
}

// SetPulsewidthUs sets the pulse width in microseconds.
func (p *Pwm) SetPulsewidthUs(us int) error {
	return p.setPulsewidthNs(int64(us) * 1e3)
}

func (p *Pwm) setPulsewidthNs(ns int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if ns < 0 {
		return errors.Wrapf(ErrInvalidArgument, "pulse width %dns is negative", ns)
	}
	return writeStringToFile(p.basePath+"/duty_cycle", strconv.FormatInt(ns, 10))
}

// Enable starts or stops driving the output.
func (p *Pwm) Enable(enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	v := "0"
	if enable {
		v = "1"
	}
	return writeStringToFile(p.basePath+"/enable", v)
}

// UseMmap would switch the channel to direct register access. None of the
// supported boards expose a register map for their PWM blocks, so enabling
// always fails with ErrUnsupported and the context stays on sysfs.
func (p *Pwm) UseMmap(enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if enable {
		return errors.Wrap(ErrUnsupported, "memory-mapped PWM is not supported on this board")
	}
	return nil
}

// SetOwner flips whether closing this context unexports the channel.
func (p *Pwm) SetOwner(owner bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.owner = owner
	return nil
}

// Close tears the context down. When the context owns the channel the
// output is disabled and the channel unexported; a borrowed channel keeps
// running untouched. The handle is invalid afterwards and must not be
// reused.
func (p *Pwm) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	var err error
	if p.owner {
		// Stop the output before handing the channel back; an unexported
		// channel can keep driving its last signal on some boards.
		err = writeStringToFile(p.basePath+"/enable", "0")
		err = multierr.Append(err, writeStringToFile(p.chipPath+"/unexport", strconv.Itoa(p.channel)))
	}
	p.closed = true
	return err
}
