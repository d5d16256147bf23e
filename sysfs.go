package maa

// Helpers for the textual file I/O the sysfs backends are built on. Every
// failure is surfaced to the caller with the file name attached; the
// backends never swallow a failed control file operation.

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Paths of the kernel GPIO and PWM class directories. Variables rather than
// constants so tests can point the backends at a scratch tree.
var (
	sysfsGpioPath = "/sys/class/gpio"
	sysfsPwmPath  = "/sys/class/pwm"
)

// Write a string to a file and close it again.
func writeStringToFile(filename string, value string) error {
	f, e := os.OpenFile(filename, os.O_WRONLY|os.O_TRUNC, 0666)
	if e != nil {
		return errors.Wrapf(e, "opening %s for writing", filename)
	}
	defer f.Close()

	if _, e = f.WriteString(value); e != nil {
		return errors.Wrapf(e, "writing %q to %s", value, filename)
	}
	return nil
}

// Read a file's content with surrounding whitespace trimmed.
func readStringFromFile(filename string) (string, error) {
	b, e := os.ReadFile(filename)
	if e != nil {
		return "", errors.Wrapf(e, "reading %s", filename)
	}
	return strings.TrimSpace(string(b)), nil
}

// Read a file holding a single decimal integer, as the PWM period and
// duty_cycle files do.
func readInt64FromFile(filename string) (int64, error) {
	s, e := readStringFromFile(filename)
	if e != nil {
		return 0, e
	}
	v, e := strconv.ParseInt(s, 10, 64)
	if e != nil {
		return 0, errors.Wrapf(e, "%s does not hold a number", filename)
	}
	return v, nil
}
