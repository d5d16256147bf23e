package maa

// The sysfs GPIO backend. A pin is exported through the kernel GPIO class,
// after which direction, drive mode, value and edge are plain text files.
// The value file is kept open for the lifetime of the pin; re-seeking and
// rewriting is an order of magnitude faster than reopening per operation.

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

type sysfsGpio struct {
	gpioPin   int
	basePath  string
	valueFile *os.File
	buf       [1]byte
}

// newSysfsGpio exports the pin if the kernel has not exported it already and
// opens its value file. The second result reports whether this call did the
// export, which decides default ownership on the raw init path.
func newSysfsGpio(gpioPin int) (*sysfsGpio, bool, error) {
	basePath := fmt.Sprintf("%s/gpio%d", sysfsGpioPath, gpioPin)

	exported := false
	if _, e := os.Stat(basePath); os.IsNotExist(e) {
		if e := writeStringToFile(sysfsGpioPath+"/export", strconv.Itoa(gpioPin)); e != nil {
			return nil, false, e
		}
		exported = true
	}

	f, e := os.OpenFile(basePath+"/value", os.O_RDWR, 0666)
	if e != nil {
		// Roll the export back; a failed init must not leave a pin exported
		// with no handle responsible for it.
		if exported {
			e = multierr.Append(e, writeStringToFile(sysfsGpioPath+"/unexport", strconv.Itoa(gpioPin)))
		}
		return nil, exported, errors.Wrapf(e, "opening value file for GPIO %d", gpioPin)
	}

	return &sysfsGpio{gpioPin: gpioPin, basePath: basePath, valueFile: f}, exported, nil
}

func (s *sysfsGpio) setDirection(dir Direction) error {
	return writeStringToFile(s.basePath+"/direction", dir.String())
}

func (s *sysfsGpio) setMode(mode Mode) error {
	return writeStringToFile(s.basePath+"/drive", mode.String())
}

func (s *sysfsGpio) setEdge(edge Edge) error {
	return writeStringToFile(s.basePath+"/edge", edge.String())
}

func (s *sysfsGpio) read() (int, error) {
	n, e := s.valueFile.ReadAt(s.buf[:], 0)
	if n == 0 && e != nil {
		return 0, errors.Wrapf(e, "reading value of GPIO %d", s.gpioPin)
	}
	if s.buf[0] == '1' {
		return HIGH, nil
	}
	return LOW, nil
}

func (s *sysfsGpio) write(value int) error {
	if _, e := s.valueFile.Seek(0, 0); e != nil {
		return errors.Wrapf(e, "seeking value file of GPIO %d", s.gpioPin)
	}
	v := "0"
	if value != 0 {
		v = "1"
	}
	if _, e := s.valueFile.WriteString(v); e != nil {
		return errors.Wrapf(e, "writing value of GPIO %d", s.gpioPin)
	}
	return nil
}

// close releases the value file and, when the context owns the pin, returns
// it to the kernel with an unexport write.
func (s *sysfsGpio) close(unexport bool) error {
	var err error
	if e := s.valueFile.Close(); e != nil {
		err = errors.Wrapf(e, "closing value file of GPIO %d", s.gpioPin)
	}
	if unexport {
		err = multierr.Append(err, writeStringToFile(sysfsGpioPath+"/unexport", strconv.Itoa(s.gpioPin)))
	}
	return err
}

// edgeWaiter is the block-until-edge primitive the interrupt watcher runs
// on. waitEdge blocks until either a transition occurs (fired true) or wake
// is called from another goroutine (fired false). release tears down the
// wait resources once the watcher goroutine has finished with them.
type edgeWaiter interface {
	waitEdge() (fired bool, err error)
	wake() error
	release() error
}

// Hook for substituting the wait primitive in tests; epoll cannot be armed
// on the regular files a scratch sysfs tree is made of.
var newEdgeWaiter = newEpollWaiter

// epollWaiter blocks on EPOLLPRI readiness of the value file, which the
// kernel asserts when an edge of the configured type occurs. A pipe is
// registered alongside it so wake can force EpollWait to return.
type epollWaiter struct {
	valueFile *os.File
	valueFd   int
	epfd      int
	wakeR     int
	wakeW     int
	initial   bool
	buf       [4]byte
}

func newEpollWaiter(s *sysfsGpio) (edgeWaiter, error) {
	epfd, e := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if e != nil {
		return nil, errors.Wrap(e, "creating epoll instance")
	}

	var p [2]int
	if e := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); e != nil {
		unix.Close(epfd)
		return nil, errors.Wrap(e, "creating wake pipe")
	}

	w := &epollWaiter{
		valueFile: s.valueFile,
		valueFd:   int(s.valueFile.Fd()),
		epfd:      epfd,
		wakeR:     p[0],
		wakeW:     p[1],
		initial:   true,
	}

	ev := unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLERR, Fd: int32(w.valueFd)}
	if e := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.valueFd, &ev); e != nil {
		w.release()
		return nil, errors.Wrapf(e, "watching value file of GPIO %d", s.gpioPin)
	}
	wev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.wakeR)}
	if e := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.wakeR, &wev); e != nil {
		w.release()
		return nil, errors.Wrap(e, "watching wake pipe")
	}

	return w, nil
}

func (w *epollWaiter) waitEdge() (bool, error) {
	var events [2]unix.EpollEvent
	for {
		n, e := unix.EpollWait(w.epfd, events[:], -1)
		if e == unix.EINTR {
			continue
		}
		if e != nil {
			return false, errors.Wrap(e, "waiting for edge")
		}

		woken := false
		edged := false
		for i := 0; i < n; i++ {
			switch int(events[i].Fd) {
			case w.wakeR:
				woken = true
			case w.valueFd:
				edged = true
			}
		}

		if edged {
			// Consume the value so the level-triggered POLLPRI condition
			// clears before the next wait.
			w.valueFile.ReadAt(w.buf[:1], 0)
			// The kernel reports the pin's current state as soon as the fd
			// is polled for the first time; that is not a transition.
			if w.initial && !woken {
				w.initial = false
				continue
			}
			w.initial = false
		}
		if woken {
			return false, nil
		}
		if edged {
			return true, nil
		}
	}
}

func (w *epollWaiter) wake() error {
	if _, e := unix.Write(w.wakeW, []byte{1}); e != nil {
		return errors.Wrap(e, "waking edge waiter")
	}
	return nil
}

func (w *epollWaiter) release() error {
	var err error
	for _, fd := range []int{w.epfd, w.wakeR, w.wakeW} {
		if e := unix.Close(fd); e != nil {
			err = multierr.Append(err, errors.Wrap(e, "releasing edge waiter"))
		}
	}
	return err
}
