package maa

// The memory-mapped GPIO backend. The register block for a chip is mapped
// once per process and shared by every context that enables mmap access on
// a pin of that chip, so the mapping itself is reference counted; the
// per-context owner flag only governs the sysfs export and has no bearing
// on when the page is unmapped.

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	regionMu sync.Mutex
	regions  = make(map[string]*mmapRegion)
)

// mmapRegion is one mapped register page, keyed by device and offset.
type mmapRegion struct {
	key  string
	file *os.File
	mem  mmap.MMap
	refs int

	// mu covers read-modify-write sequences on registers shared between
	// pins, such as the function select registers.
	mu sync.Mutex
}

// openRegion maps the page described by spec, or hands out the existing
// mapping when another context already holds it.
func openRegion(spec *MmapSpec) (*mmapRegion, error) {
	regionMu.Lock()
	defer regionMu.Unlock()

	key := fmt.Sprintf("%s@%#x", spec.Device, spec.Base)
	if r, ok := regions[key]; ok {
		r.refs++
		return r, nil
	}

	f, e := os.OpenFile(spec.Device, os.O_RDWR|os.O_SYNC, 0)
	if e != nil {
		return nil, errors.Wrapf(e, "opening %s", spec.Device)
	}
	mem, e := mmap.MapRegion(f, spec.Size, mmap.RDWR, 0, spec.Base)
	if e != nil {
		f.Close()
		return nil, errors.Wrapf(e, "mapping %s", spec.Device)
	}

	r := &mmapRegion{key: key, file: f, mem: mem, refs: 1}
	regions[key] = r
	return r, nil
}

// release drops one reference and unmaps the page when the last context
// using it lets go.
func (r *mmapRegion) release() error {
	regionMu.Lock()
	defer regionMu.Unlock()

	r.refs--
	if r.refs > 0 {
		return nil
	}
	delete(regions, r.key)

	var err error
	if e := r.mem.Unmap(); e != nil {
		err = errors.Wrapf(e, "unmapping %s", r.key)
	}
	if e := r.file.Close(); e != nil {
		err = multierr.Append(err, errors.Wrapf(e, "closing %s", r.key))
	}
	return err
}

// Registers are 32 bit and little endian on the supported chips.
func (r *mmapRegion) read32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(r.mem[off : off+4])
}

func (r *mmapRegion) write32(off uint32, v uint32) {
	binary.LittleEndian.PutUint32(r.mem[off:off+4], v)
}

// mmapGpio drives one pin through a shared mmapRegion. Reads and writes go
// straight to the mapped registers with no kernel call.
type mmapGpio struct {
	spec   *MmapSpec
	region *mmapRegion
}

func newMmapGpio(spec *MmapSpec) (*mmapGpio, error) {
	r, e := openRegion(spec)
	if e != nil {
		return nil, e
	}
	return &mmapGpio{spec: spec, region: r}, nil
}

// setDirection rewrites the pin's field in the shared function select
// register, so the read-modify-write runs under the region lock.
func (m *mmapGpio) setDirection(dir Direction) error {
	m.region.mu.Lock()
	defer m.region.mu.Unlock()

	v := m.region.read32(m.spec.FselReg)
	v &^= 7 << m.spec.FselShift
	if dir == OUT {
		v |= 1 << m.spec.FselShift
	}
	m.region.write32(m.spec.FselReg, v)
	return nil
}

// setMode: the register path only drives pins strongly; resistive modes are
// configured through separate pull registers that differ per chip revision
// and are not modelled here.
func (m *mmapGpio) setMode(mode Mode) error {
	if mode != STRONG {
		return errors.Wrapf(ErrUnsupported, "drive mode %s requires the sysfs backend", mode)
	}
	return nil
}

func (m *mmapGpio) read() (int, error) {
	if m.region.read32(m.spec.LevelReg)&m.spec.Bit != 0 {
		return HIGH, nil
	}
	return LOW, nil
}

// write uses the dedicated set/clear registers, so no read-modify-write and
// no lock is needed.
func (m *mmapGpio) write(value int) error {
	if value != 0 {
		m.region.write32(m.spec.SetReg, m.spec.Bit)
	} else {
		m.region.write32(m.spec.ClearReg, m.spec.Bit)
	}
	return nil
}

func (m *mmapGpio) close() error {
	return m.region.release()
}
