// Package heap implements the kernel heap: a fixed virtual region backed
// by mapped frames, serviced by a first-fit free-list allocator. Grounded
// on biscuit's mem.go Pg_t/Bytepg_t framing and Page_i allocation
// contract for the page-granular backing, and on fs/blk.go's habit of
// embedding sync.Mutex directly in the protected struct for the
// spin-mutex-guarded free list spec.md calls for.
package heap

import (
	"sync"
	"unsafe"

	"cfskernel/src/kernelerr"
	"cfskernel/src/mem"
	"cfskernel/src/util"
)

/// Mapper is the narrow collaborator heap needs from src/vm: map the
/// heap's backing frames into its fixed virtual region before any
/// Allocate call. Callers adapt vm.AS.MapContiguous's FailKind return
/// into a panic, since a failure to map the heap's own backing store is
/// unrecoverable this early in boot.
type Mapper interface {
	MapContiguous(v uintptr, p mem.Pa_t, size int, flags mem.Pa_t)
}

/// FrameAllocator hands out the physical frames that back the heap
/// region.
type FrameAllocator interface {
	Allocate() (mem.Pa_t, kernelerr.Err_t)
}

type freeBlock struct {
	size int
	next *freeBlock
}

// allocHeader sits immediately before every pointer Allocate hands out,
// recording the free-list block's true start address and the total
// number of bytes consumed out of the free list for this allocation
// (the block's own alignment padding included). Deallocate reads it back
// to reconstruct the full node instead of only the aligned span the
// caller sees — without it, every allocation whose alignment forced a
// gap between the block's start and the returned pointer would leak
// that gap's bytes back into no free list at all.
type allocHeader struct {
	start uintptr
	need  uintptr
}

const hdrSize = unsafe.Sizeof(allocHeader{})

/// Heap is the process-wide kernel heap: one fixed virtual region, one
/// free list, one spin-mutex (interrupts disabled while held, per
/// spec.md's concurrency contract).
type Heap struct {
	mu       sync.Mutex
	base     uintptr
	size     int
	freeList *freeBlock
	used     int
	free     int
}

/// New maps size bytes (rounded up to a whole number of frames) at
/// virtual address base with present+writable flags, then seeds the
/// free list with one block covering the entire region.
func New(base uintptr, size int, mapper Mapper, allocator FrameAllocator) *Heap {
	npages := (size + mem.PGSIZE - 1) / mem.PGSIZE
	size = npages * mem.PGSIZE

	for i := 0; i < npages; i++ {
		frame, err := allocator.Allocate()
		if !err.Ok() {
			panic("heap: out of frames while mapping heap region")
		}
		mapper.MapContiguous(base+uintptr(i*mem.PGSIZE), frame, mem.PGSIZE, mem.PTE_P|mem.PTE_W)
	}

	h := &Heap{base: base, size: size, free: size}
	first := (*freeBlock)(unsafe.Pointer(base))
	first.size = size
	first.next = nil
	h.freeList = first
	return h
}

/// Allocate returns a pointer to a block of at least size bytes aligned
/// to align (a power of two no larger than 4096), or panics — there is
/// no recovery path for heap exhaustion this early in boot, matching
/// spec.md's "non-null pointer or abort" contract.
func (h *Heap) Allocate(size int, align int) unsafe.Pointer {
	if !util.IsPow2(align) || align > mem.PGSIZE {
		panic("heap: invalid alignment")
	}
	size = util.Roundup(size, 8)

	h.mu.Lock()
	defer h.mu.Unlock()

	var prev *freeBlock
	for b := h.freeList; b != nil; b = b.next {
		addr := uintptr(unsafe.Pointer(b))
		alignedAddr := util.Roundup(addr+hdrSize, uintptr(align))
		pad := int(alignedAddr - addr)
		need := pad + size

		if b.size >= need {
			remaining := b.size - need
			if remaining >= 16 {
				tail := (*freeBlock)(unsafe.Pointer(addr + uintptr(need)))
				tail.size = remaining
				tail.next = b.next
				h.replace(prev, b, tail)
			} else {
				need = b.size
				h.replace(prev, b, b.next)
			}
			h.used += need
			h.free -= need

			hdr := (*allocHeader)(unsafe.Pointer(alignedAddr - hdrSize))
			hdr.start = addr
			hdr.need = uintptr(need)
			return unsafe.Pointer(alignedAddr)
		}
		prev = b
	}
	panic("heap: out of memory")
}

func (h *Heap) replace(prev, old, next *freeBlock) {
	if prev == nil {
		h.freeList = next
	} else {
		prev.next = next
	}
}

/// Deallocate returns a previously allocated block back to the free
/// list, using the allocHeader Allocate left just before ptr to recover
/// the block's true start address and its full consumed size — size and
/// align are accepted only to keep the call symmetric with Allocate and
/// are not otherwise needed. It does not coalesce adjacent blocks —
/// acceptable for this kernel's lifetime-short allocation pattern, the
/// same simplification biscuit's own free-list era allocator made.
func (h *Heap) Deallocate(ptr unsafe.Pointer, size int, align int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hdr := (*allocHeader)(unsafe.Pointer(uintptr(ptr) - hdrSize))
	start := hdr.start
	need := int(hdr.need)

	b := (*freeBlock)(unsafe.Pointer(start))
	b.size = need
	b.next = h.freeList
	h.freeList = b
	h.used -= need
	h.free += need
}

/// Used returns the number of bytes currently allocated out of the heap.
func (h *Heap) Used() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

/// Free returns the number of bytes currently available in the free list.
func (h *Heap) Free() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.free
}
