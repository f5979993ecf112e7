// Package ioport provides the two primitives every device driver in this
// kernel is built on: fixed-width port I/O (IN/OUT) and volatile MMIO
// access over the physical direct map. Go has no portable intrinsic for
// IN/OUT, so the port operations are declared here and implemented in
// hand-written assembly, linked in with go:linkname the way
// iansmith-mazarin's uart_qemu.go links its MMIO primitives to
// assembly stubs.
package ioport

import "unsafe"

// Outb writes an 8-bit value to the given I/O port.
//
//go:linkname Outb runtime.outb
func Outb(port uint16, val uint8)

// Inb reads an 8-bit value from the given I/O port.
//
//go:linkname Inb runtime.inb
func Inb(port uint16) uint8

// Outw writes a 16-bit value to the given I/O port.
//
//go:linkname Outw runtime.outw
func Outw(port uint16, val uint16)

// Inw reads a 16-bit value from the given I/O port.
//
//go:linkname Inw runtime.inw
func Inw(port uint16) uint16

// Outl writes a 32-bit value to the given I/O port.
//
//go:linkname Outl runtime.outl
func Outl(port uint16, val uint32)

// Inl reads a 32-bit value from the given I/O port.
//
//go:linkname Inl runtime.inl
func Inl(port uint16) uint32

// Cli disables maskable interrupts on the current core.
//
//go:linkname Cli runtime.cli
func Cli()

// Sti enables maskable interrupts on the current core.
//
//go:linkname Sti runtime.sti
func Sti()

/// WithInterruptsDisabled runs f with interrupts masked, the Go-level
/// realization of biscuit's "spin-mutex + interrupts disabled" critical
/// section idiom (there is no preemptive scheduler here to race with, only
/// the interrupt handlers themselves). f must not block.
func WithInterruptsDisabled(f func()) {
	Cli()
	defer Sti()
	f()
}

/// DirectMap is the physical-memory window every MMIO accessor indexes
/// into, mirroring mem.Dmaplen's direct-map idiom: physical address p
/// becomes Go pointer DirectMapBase+p.
var DirectMapBase uintptr

/// MMIO8 returns a volatile-ish view of one byte at physical address pa.
/// Go has no volatile qualifier; callers must not rely on the compiler
/// eliding redundant loads/stores the way it would for ordinary memory,
/// which is why every MMIO access goes through these functions instead of
/// a raw *uint8.
func MMIO8(pa uintptr) *uint8 {
	return (*uint8)(unsafe.Pointer(DirectMapBase + pa))
}

/// MMIO32 returns a pointer to a 32-bit MMIO register at physical
/// address pa. pa must be 4-byte aligned.
func MMIO32(pa uintptr) *uint32 {
	if pa%4 != 0 {
		panic("ioport: unaligned MMIO32 access")
	}
	return (*uint32)(unsafe.Pointer(DirectMapBase + pa))
}

/// ReadMMIO32 performs a single 32-bit MMIO load.
func ReadMMIO32(pa uintptr) uint32 {
	return *MMIO32(pa)
}

/// WriteMMIO32 performs a single 32-bit MMIO store.
func WriteMMIO32(pa uintptr, val uint32) {
	*MMIO32(pa) = val
}
