// Package vm manages the kernel's page tables: translate, map,
// map_contiguous, unmap, over a single four-level address space.
// Grounded on biscuit's vm/as.go (Vm_t's embedded mutex guarding the
// Pmap, the page-table-walk shape) and mem/dmap.go (pgbits/mkpg index
// extraction, the physical direct-map idiom) — narrowed from biscuit's
// per-process address space plus copy-on-write machinery down to the
// single always-resident kernel address space this spec calls for.
package vm

import (
	"sync"
	"unsafe"

	"cfskernel/src/kernelerr"
	"cfskernel/src/mem"
)

/// FrameAllocator is the narrow collaborator vm needs from src/mem: hand
/// out and return single frames for intermediate page-table pages and
/// fresh leaf mappings.
type FrameAllocator interface {
	Allocate() (mem.Pa_t, kernelerr.Err_t)
	Free(mem.Pa_t)
}

/// Pmap_t is one page-table page: 512 64-bit entries.
type Pmap_t [512]mem.Pa_t

/// FailKind classifies why Map did not install a mapping.
type FailKind int

const (
	FailNone FailKind = iota
	/// FailAlreadyMapped means the page is mapped to a different frame
	/// already — fatal per spec.md.
	FailAlreadyMapped
	/// FailHugeParent means an intermediate entry is a huge page,
	/// blocking a 4 KiB mapping beneath it — warn-and-skip per spec.md.
	FailHugeParent
	/// FailOutOfFrames means the frame allocator could not supply an
	/// intermediate table page — fatal per spec.md.
	FailOutOfFrames
)

func (fk FailKind) String() string {
	switch fk {
	case FailNone:
		return "ok"
	case FailAlreadyMapped:
		return "already-mapped-different-frame"
	case FailHugeParent:
		return "huge-parent"
	case FailOutOfFrames:
		return "out-of-frames"
	default:
		return "unknown"
	}
}

/// AS is the kernel's single address space: a top-level page table plus
/// the direct-map offset needed to dereference table pages by physical
/// address. It is a process-wide singleton, protected by a spin-mutex
/// held with interrupts disabled (spec.md's shared-resource model).
type AS struct {
	mu        sync.Mutex
	root      mem.Pa_t
	dmapOff   uintptr
	allocator FrameAllocator
}

/// Init builds an address space rooted at an existing top-level table
/// (installed by the bootloader) and records physOff, the linear offset
/// at which all physical memory is visible, per spec.md's boot contract.
func Init(root mem.Pa_t, physOff uintptr, allocator FrameAllocator) *AS {
	return &AS{root: root, dmapOff: physOff, allocator: allocator}
}

func (as *AS) deref(p mem.Pa_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(as.dmapOff + uintptr(p)))
}

// pgbits extracts the four 9-bit page-table indices from a virtual
// address, in the same shift pattern as biscuit's mem/dmap.go pgbits.
func pgbits(v uintptr) (l4, l3, l2, l1 uint) {
	idx := func(shift uint) uint {
		return uint(v>>shift) & 0x1ff
	}
	return idx(39), idx(30), idx(21), idx(12)
}

/// Translate walks the four-level table for v and returns its mapped
/// physical address, or ok=false if any level is not present.
func (as *AS) Translate(v uintptr) (pa mem.Pa_t, ok bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.translateLocked(v)
}

func (as *AS) translateLocked(v uintptr) (mem.Pa_t, bool) {
	l4i, l3i, l2i, l1i := pgbits(v)
	table := as.deref(as.root)

	walk := func(t *Pmap_t, idx uint) (mem.Pa_t, bool) {
		e := t[idx]
		if e&mem.PTE_P == 0 {
			return 0, false
		}
		return e & mem.PTE_ADDR, true
	}

	p4, ok := walk(table, l4i)
	if !ok {
		return 0, false
	}
	t3 := as.deref(p4)
	p3, ok := walk(t3, l3i)
	if !ok {
		return 0, false
	}
	t2 := as.deref(p3)
	p2, ok := walk(t2, l2i)
	if !ok {
		return 0, false
	}
	t1 := as.deref(p2)
	leaf := t1[l1i]
	if leaf&mem.PTE_P == 0 {
		return 0, false
	}
	off := mem.Pa_t(v) & mem.PGOFFSET
	return (leaf & mem.PTE_ADDR) | off, true
}

// ensureTable returns the physical address of the table one level below
// entry *e, allocating and installing a fresh one if entry is not
// present. It returns FailHugeParent if the existing entry is a huge
// page and FailOutOfFrames if a new table page could not be allocated.
func (as *AS) ensureTable(e *mem.Pa_t, flags mem.Pa_t) (mem.Pa_t, FailKind) {
	if *e&mem.PTE_P != 0 {
		if *e&mem.PTE_PS != 0 {
			return 0, FailHugeParent
		}
		return *e & mem.PTE_ADDR, FailNone
	}
	frame, err := as.allocator.Allocate()
	if !err.Ok() {
		return 0, FailOutOfFrames
	}
	tbl := as.deref(frame)
	for i := range tbl {
		tbl[i] = 0
	}
	*e = frame | mem.PTE_P | mem.PTE_W | (flags &^ (mem.PTE_PS))
	return frame, FailNone
}

/// Map inserts a single 4 KiB mapping of v to p with the given flags,
/// allocating intermediate tables on demand and invalidating the TLB
/// entry for v on success.
func (as *AS) Map(v uintptr, p mem.Pa_t, flags mem.Pa_t) FailKind {
	as.mu.Lock()
	defer as.mu.Unlock()

	l4i, l3i, l2i, l1i := pgbits(v)
	top := as.deref(as.root)

	p4, fk := as.ensureTable(&top[l4i], flags)
	if fk != FailNone {
		return fk
	}
	t3 := as.deref(p4)
	p3, fk := as.ensureTable(&t3[l3i], flags)
	if fk != FailNone {
		return fk
	}
	t2 := as.deref(p3)
	p2, fk := as.ensureTable(&t2[l2i], flags)
	if fk != FailNone {
		return fk
	}
	t1 := as.deref(p2)

	leaf := &t1[l1i]
	if *leaf&mem.PTE_P != 0 {
		if *leaf&mem.PTE_ADDR != p&mem.PTE_ADDR {
			return FailAlreadyMapped
		}
		return FailNone
	}
	*leaf = (p & mem.PTE_ADDR) | mem.PTE_P | (flags &^ mem.PTE_PS)
	invlpg(v)
	return FailNone
}

/// MapContiguous maps ceil(size/PGSIZE) consecutive pages starting at v
/// to consecutive frames starting at p. On any failure partway through
/// it unwinds every mapping it installed so the range is left entirely
/// unmapped, per spec.md's map_contiguous reversibility invariant.
func (as *AS) MapContiguous(v uintptr, p mem.Pa_t, size int, flags mem.Pa_t) FailKind {
	npages := (size + mem.PGSIZE - 1) / mem.PGSIZE
	mapped := 0
	for i := 0; i < npages; i++ {
		fk := as.Map(v+uintptr(i*mem.PGSIZE), p+mem.Pa_t(i*mem.PGSIZE), flags)
		if fk != FailNone {
			as.Unmap(v, mapped)
			return fk
		}
		mapped++
	}
	return FailNone
}

/// Unmap clears npages consecutive leaf mappings starting at v. Entries
/// that were never mapped are silently skipped.
func (as *AS) Unmap(v uintptr, npages int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	for i := 0; i < npages; i++ {
		cur := v + uintptr(i*mem.PGSIZE)
		l4i, l3i, l2i, l1i := pgbits(cur)
		top := as.deref(as.root)
		if top[l4i]&mem.PTE_P == 0 {
			continue
		}
		t3 := as.deref(top[l4i] & mem.PTE_ADDR)
		if t3[l3i]&mem.PTE_P == 0 {
			continue
		}
		t2 := as.deref(t3[l3i] & mem.PTE_ADDR)
		if t2[l2i]&mem.PTE_P == 0 {
			continue
		}
		t1 := as.deref(t2[l2i] & mem.PTE_ADDR)
		t1[l1i] = 0
		invlpg(cur)
	}
}

/// DemandMap implements the idt.PageMapper contract: it maps a fresh
/// present+writable frame at va if va has never been mapped, satisfying
/// spec.md's kernel-region page-fault recovery policy. regionLo/regionHi
/// bound the kernel region this AS is allowed to demand-map within.
func (as *AS) DemandMap(va uintptr, regionLo, regionHi uintptr) bool {
	if va < regionLo || va >= regionHi {
		return false
	}
	as.mu.Lock()
	if _, ok := as.translateLocked(va); ok {
		as.mu.Unlock()
		return false
	}
	as.mu.Unlock()

	frame, err := as.allocator.Allocate()
	if !err.Ok() {
		return false
	}
	aligned := va &^ uintptr(mem.PGOFFSET)
	fk := as.Map(aligned, frame, mem.PTE_P|mem.PTE_W)
	return fk == FailNone
}

//go:linkname invlpg runtime.invlpg
func invlpg(v uintptr)
