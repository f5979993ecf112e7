// Package blkdev abstracts over the two block-device variants this
// kernel can mount — an ATA(bus, drive) disk or a RAM-backed disk — and
// owns the single process-wide mount slot. Directly grounded on
// original_source's device.rs (Device::{Ata, Mem}, the BlockDeviceIO
// trait's default read_range/write_range, mount/global read/write, the
// exists-before-mount check). DeviceInfo's accessor style follows
// biscuit's stat/stat.go (Wxxx/Rxxx naming, a Bytes()-shaped summary).
package blkdev

import (
	"fmt"
	"sync"

	"cfskernel/src/ata"
	"cfskernel/src/blkcache"
	"cfskernel/src/kernelerr"
)

/// DeviceInfo summarizes a device: its block count and a human-readable
/// name, mirroring biscuit's stat_t accessor style.
type DeviceInfo struct {
	blocks int
	name   string
}

/// Wblocks returns the device's block count (biscuit-style Wxxx naming).
func (d DeviceInfo) Wblocks() int { return d.blocks }

/// Wname returns the device's display name.
func (d DeviceInfo) Wname() string { return d.name }

/// String renders "name: N blocks", the line the shell's mount command
/// prints on success.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s: %d blocks", d.name, d.blocks)
}

/// Device is the polymorphic block device spec.md §4.10 describes:
/// exactly one of Ata or Mem is active, selected by Kind.
type Device struct {
	Kind  Kind
	Bus   uint8
	Drive uint8
	mem   []ata.Sector

	backend *ata.Registers
	cache   *blkcache.Cache
}

/// Kind distinguishes the two device variants.
type Kind int

const (
	KindATA Kind = iota
	KindMem
)

/// NewATA returns an unmounted device descriptor for the given ATA
/// bus/drive pair.
func NewATA(bus, drive uint8, regs *ata.Registers, cache *blkcache.Cache) *Device {
	return &Device{Kind: KindATA, Bus: bus, Drive: drive, backend: regs, cache: cache}
}

/// NewMem returns an unmounted RAM-backed device of nblocks sectors,
/// zero-initialized, matching original_source's Device::mem constructor.
func NewMem(nblocks int) *Device {
	return &Device{Kind: KindMem, mem: make([]ata.Sector, nblocks)}
}

/// NewMemFromSectors wraps an existing slice of sectors as a RAM-backed
/// device without copying, so a host tool can load an on-disk image file
/// straight into a Device for fs.Mount/fs.Format to operate on.
func NewMemFromSectors(sectors []ata.Sector) *Device {
	return &Device{Kind: KindMem, mem: sectors}
}

/// Sectors exposes the backing slice of a RAM-backed device so a host
/// tool can persist it to a file after fs operations complete. It panics
/// if called on an ATA-backed device.
func (d *Device) Sectors() []ata.Sector {
	if d.Kind != KindMem {
		panic("blkdev: Sectors called on a non-memory device")
	}
	return d.mem
}

/// BlockCount returns the device's total addressable sector count.
func (d *Device) BlockCount() (int, kernelerr.Err_t) {
	switch d.Kind {
	case KindMem:
		return len(d.mem), kernelerr.ENone
	default:
		info, err := d.backend.Identify(d.Drive)
		if !err.Ok() {
			return 0, err
		}
		return int(info.Sectors), kernelerr.ENone
	}
}

/// Info returns the device's DeviceInfo, the gate mount() checks before
/// installing a device (spec.md: "A mount is installed by mount(device)
/// only if info() succeeds").
func (d *Device) Info() (DeviceInfo, kernelerr.Err_t) {
	switch d.Kind {
	case KindMem:
		return DeviceInfo{blocks: len(d.mem), name: "memory"}, kernelerr.ENone
	default:
		info, err := d.backend.Identify(d.Drive)
		if !err.Ok() {
			return DeviceInfo{}, err
		}
		return DeviceInfo{blocks: int(info.Sectors), name: info.Model + ":" + info.Serial}, kernelerr.ENone
	}
}

/// Read returns one sector at lba.
func (d *Device) Read(lba uint32) (ata.Sector, kernelerr.Err_t) {
	if d.Kind == KindMem {
		if int(lba) >= len(d.mem) {
			return ata.Sector{}, kernelerr.EBadArgument
		}
		return d.mem[lba], kernelerr.ENone
	}
	return d.cache.Read(d.Bus, d.Drive, lba)
}

/// Write stores data at lba.
func (d *Device) Write(lba uint32, data ata.Sector) kernelerr.Err_t {
	if d.Kind == KindMem {
		if int(lba) >= len(d.mem) {
			return kernelerr.EBadArgument
		}
		d.mem[lba] = data
		return kernelerr.ENone
	}
	return d.cache.Write(d.Bus, d.Drive, lba, data)
}

/// ReadRange reads the len(buf) sectors lba..lba+len(buf)-1 into buf,
/// stopping at and returning the first sector read error — the
/// BlockDeviceIO default original_source gives every device variant for
/// free.
func (d *Device) ReadRange(lba uint32, buf []ata.Sector) kernelerr.Err_t {
	for i := range buf {
		sec, err := d.Read(lba + uint32(i))
		if !err.Ok() {
			return err
		}
		buf[i] = sec
	}
	return kernelerr.ENone
}

/// WriteRange writes buf starting at lba.
func (d *Device) WriteRange(lba uint32, buf []ata.Sector) kernelerr.Err_t {
	for i, sec := range buf {
		if err := d.Write(lba+uint32(i), sec); !err.Ok() {
			return err
		}
	}
	return kernelerr.ENone
}

/// Exists reports whether Info() succeeds, the existence check mount()
/// performs before installing a device.
func (d *Device) Exists() bool {
	_, err := d.Info()
	return err.Ok()
}

/// Mount is the process-wide optional handle, guarded by a spin-mutex
/// (interrupts disabled while held), matching spec.md's "exactly one
/// mount may be active at a time."
type Mount struct {
	mu      sync.Mutex
	current *Device
}

/// Global is the single process-wide mount slot.
var Global = &Mount{}

/// Set installs dev as the current mount if dev.Exists() succeeds. It
/// returns EIO if dev does not exist.
func (m *Mount) Set(dev *Device) kernelerr.Err_t {
	if !dev.Exists() {
		return kernelerr.EIO
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = dev
	return kernelerr.ENone
}

/// Device returns the currently mounted device, or ENotMounted if none.
func (m *Mount) Device() (*Device, kernelerr.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, kernelerr.ENotMounted
	}
	return m.current, kernelerr.ENone
}

/// Read resolves through the current mount; with no mount it returns
/// not-mounted, per spec.md's global-read contract.
func Read(lba uint32) (ata.Sector, kernelerr.Err_t) {
	dev, err := Global.Device()
	if !err.Ok() {
		return ata.Sector{}, err
	}
	return dev.Read(lba)
}

/// Write resolves through the current mount.
func Write(lba uint32, data ata.Sector) kernelerr.Err_t {
	dev, err := Global.Device()
	if !err.Ok() {
		return err
	}
	return dev.Write(lba, data)
}
