// Package mem owns physical-frame bookkeeping: the Pa_t address type,
// page-table entry flag constants, and a packed-bit frame allocator
// sized PHYS_MAX/4096 bits. Grounded on biscuit's mem/mem.go (Pa_t,
// PGSHIFT/PGSIZE, PTE_* flags, Page_i) for the type vocabulary; the
// bitmap allocator itself is new, since biscuit's real allocator lives
// in its runtime fork (out of this pack's reach), but it keeps the
// teacher's deterministic "lowest free frame wins" tie-break spirit.
package mem

import (
	"sync"

	"cfskernel/src/kernelerr"
)

/// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single physical frame / virtual page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks the in-page offset bits of an address.
const PGOFFSET Pa_t = 0xfff

/// PGMASK masks the frame-number bits of an address.
const PGMASK Pa_t = ^PGOFFSET

// Page-table entry flags, in the same bit positions biscuit's mem.go
// uses (and which the x86-64 architecture fixes).
const (
	PTE_P   Pa_t = 1 << 0
	PTE_W   Pa_t = 1 << 1
	PTE_U   Pa_t = 1 << 2
	PTE_PCD Pa_t = 1 << 4
	PTE_PS  Pa_t = 1 << 7
	PTE_G   Pa_t = 1 << 8
	PTE_ADDR Pa_t = PGMASK
)

/// Pa_t is a physical address.
type Pa_t uintptr

/// RegionKind classifies one entry of the bootloader-supplied memory map.
type RegionKind int

const (
	Usable RegionKind = iota
	Reserved
	ACPI
)

/// Region is one [start, end) span of the firmware memory map.
type Region struct {
	Start, End Pa_t
	Kind       RegionKind
}

/// Allocator is the process-wide physical frame allocator: a packed bit
/// array over [0, PhysMax), one bit per 4 KiB frame. It is a singleton
/// resource, protected by a spin-mutex taken with interrupts disabled by
/// the caller (spec.md's global-mutable-state model) — the mutex here
/// models that discipline at the Go level.
type Allocator struct {
	mu       sync.Mutex
	bits     []uint64
	physMax  Pa_t
	used     int
	free     int
	nextHint int
}

/// NewAllocator builds an allocator over [0, physMax) and marks every
/// frame outside a usable region (and any frame physMax doesn't cover)
/// as permanently reserved, mirroring spec.md's "walks the firmware
/// memory map and marks bits for every sector inside a non-usable
/// region."
func NewAllocator(physMax Pa_t, regions []Region) *Allocator {
	nframes := int(physMax) / PGSIZE
	a := &Allocator{
		bits:    make([]uint64, (nframes+63)/64),
		physMax: physMax,
	}
	// Start fully reserved, then clear bits for usable regions.
	for i := range a.bits {
		a.bits[i] = ^uint64(0)
	}
	for _, r := range regions {
		if r.Kind != Usable {
			continue
		}
		startFrame := int(r.Start) / PGSIZE
		endFrame := int(r.End) / PGSIZE
		for f := startFrame; f < endFrame && f < nframes; f++ {
			a.clearBit(f)
		}
	}
	a.free = a.countClear()
	return a
}

func (a *Allocator) countClear() int {
	n := 0
	for f := 0; f < len(a.bits)*64; f++ {
		if !a.testBit(f) {
			n++
		}
	}
	return n
}

func (a *Allocator) testBit(f int) bool {
	return a.bits[f/64]&(1<<uint(f%64)) != 0
}

func (a *Allocator) setBit(f int) {
	a.bits[f/64] |= 1 << uint(f%64)
}

func (a *Allocator) clearBit(f int) {
	a.bits[f/64] &^= 1 << uint(f%64)
}

/// Allocate returns the lowest-index free frame, marking it in-use. The
/// lowest-index tie-break is deliberate and matches spec.md's "always
/// choose the lowest-index free frame (deterministic for tests)."
func (a *Allocator) Allocate() (Pa_t, kernelerr.Err_t) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nframes := len(a.bits) * 64
	for f := a.nextHint; f < nframes; f++ {
		if !a.testBit(f) {
			a.setBit(f)
			a.used++
			a.free--
			a.nextHint = f + 1
			return Pa_t(f) << PGSHIFT, kernelerr.ENone
		}
	}
	// Wrap around: a frame freed below nextHint may now be available.
	for f := 0; f < a.nextHint && f < nframes; f++ {
		if !a.testBit(f) {
			a.setBit(f)
			a.used++
			a.free--
			a.nextHint = f + 1
			return Pa_t(f) << PGSHIFT, kernelerr.ENone
		}
	}
	return 0, kernelerr.EOOM
}

/// Free returns frame to the pool. Freeing an already-free frame is a
/// programmer bug and panics, matching the closed free/in-use state
/// machine spec.md defines for a physical frame.
func (a *Allocator) Free(frame Pa_t) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := int(frame) / PGSIZE
	if !a.testBit(f) {
		panic("mem: double free of physical frame")
	}
	a.clearBit(f)
	a.used--
	a.free++
	if f < a.nextHint {
		a.nextHint = f
	}
}

/// Used returns the number of frames currently allocated.
func (a *Allocator) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

/// Free_ returns the number of frames currently free. (Named Free_ to
/// avoid colliding with the Free method.)
func (a *Allocator) Free_() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free
}
