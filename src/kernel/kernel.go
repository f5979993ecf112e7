// Package kernel wires the components in §4.1-§4.11 together behind the
// control flow spec.md §2 lays out: install interrupt tables, remap and
// unmask the PIC, program the timer, enable interrupts, build the frame
// allocator and page tables, map and initialize the kernel heap,
// register ATA IRQ vectors, mount a block device, attach the
// filesystem. Generalizes biscuit's kernel/chentry.go's role as "the
// thinnest package in the tree that ties everything else together,"
// since this repo's entry point is a whole orchestration package rather
// than a single host-tool file.
package kernel

import (
	"fmt"
	"io"
	_ "unsafe" // for go:linkname

	"cfskernel/src/ata"
	"cfskernel/src/blkcache"
	"cfskernel/src/blkdev"
	"cfskernel/src/caller"
	"cfskernel/src/fs"
	"cfskernel/src/heap"
	"cfskernel/src/idt"
	"cfskernel/src/ioport"
	"cfskernel/src/kernelerr"
	"cfskernel/src/limits"
	"cfskernel/src/mem"
	"cfskernel/src/pic"
	"cfskernel/src/pit"
	"cfskernel/src/vm"
)

/// BootInfo is the boot contract spec.md §7.1 describes: framebuffer
/// geometry, the firmware memory map, and the physical linear-map
/// offset. The framebuffer fields are carried through to satisfy the
/// contract but are not consumed here — the framebuffer driver itself is
/// an out-of-scope external collaborator.
type BootInfo struct {
	FramebufferBase uintptr
	Width, Height   int
	Stride          int
	BytesPerPixel   int

	Regions []mem.Region
	PhysMax mem.Pa_t

	/// PhysOffset is V0: physical byte p is visible at V0+p once paging
	/// is on.
	PhysOffset uintptr

	/// PagetableRoot is the physical address of the active top-level
	/// page table installed by the bootloader.
	PagetableRoot mem.Pa_t

	/// KernelRegionLo/Hi bound the virtual range the page-fault handler
	/// is allowed to demand-map within, per spec.md §9's resolution
	/// restricting recovery to kernel-region pages.
	KernelRegionLo, KernelRegionHi uintptr

	/// HeapBase is the fixed virtual address the kernel heap is mapped
	/// at.
	HeapBase uintptr
}

/// Kernel is the fully wired collection of singleton resources spec.md
/// §5 calls process-wide: the page table, heap allocator, block cache,
/// mount slot, interrupt-vector table, and timer counter.
type Kernel struct {
	Log      io.Writer
	Frames   *mem.Allocator
	AS       *vm.AS
	Heap     *heap.Heap
	IDT      *idt.Table
	Cache    *blkcache.Cache
	regionLo uintptr
	regionHi uintptr

	// panicTrace dedupes the call stacks Panic logs, so a recurring fault
	// path doesn't flood the serial log with the same trace on every hit.
	panicTrace caller.Distinct_caller_t
}

type demandMapper struct {
	as       *vm.AS
	regionLo uintptr
	regionHi uintptr
}

func (d demandMapper) DemandMap(va uintptr) bool {
	return d.as.DemandMap(va, d.regionLo, d.regionHi)
}

// heapMapperAdapter adapts vm.AS.MapContiguous's FailKind return into
// the unconditional heap.Mapper contract: a failure to map the heap's
// own backing store this early in boot is unrecoverable.
type heapMapperAdapter struct {
	as *vm.AS
}

func (h heapMapperAdapter) MapContiguous(v uintptr, p mem.Pa_t, size int, flags mem.Pa_t) {
	if fk := h.as.MapContiguous(v, p, size, flags); fk != vm.FailNone {
		panic(fmt.Sprintf("kernel: failed to map heap region: %v", fk))
	}
}

/// Boot runs the control-flow line spec.md §2 specifies, from installing
/// interrupt tables through mapping and initializing the kernel heap. It
/// stops short of mounting a device or attaching a filesystem — those
/// are explicit follow-on calls (MountAndAttach) since they require a
/// caller-chosen device.
func Boot(info BootInfo, log io.Writer) *Kernel {
	k := &Kernel{Log: log, regionLo: info.KernelRegionLo, regionHi: info.KernelRegionHi}
	k.panicTrace.Enabled = true

	k.Frames = mem.NewAllocator(info.PhysMax, info.Regions)
	k.AS = vm.Init(info.PagetableRoot, info.PhysOffset, k.Frames)

	k.IDT = idt.New(log, demandMapper{as: k.AS, regionLo: info.KernelRegionLo, regionHi: info.KernelRegionHi})
	idt.Install()

	pic.Init()
	pit.SetFrequency(100)
	k.IDT.Register(idt.VecTimer, func(f idt.Frame) {
		pit.Tick()
		idt.AcknowledgeIRQ(idt.VecTimer)
	})

	ioport.Sti()

	k.Heap = heap.New(info.HeapBase, limits.Syslimit.HeapSize, heapMapperAdapter{as: k.AS}, k.Frames)

	return k
}

/// RegisterATAIRQs binds the primary and secondary ATA IRQ vectors to a
/// handler that only acknowledges the IRQ, matching spec.md §2's
/// "register ATA IRQ vectors" step. The PIO driver in this kernel is
/// polling-based, so nothing else happens on these interrupts.
func (k *Kernel) RegisterATAIRQs() {
	ackOnly := func(vector int) idt.Handler {
		return func(f idt.Frame) {
			idt.AcknowledgeIRQ(vector)
		}
	}
	k.IDT.Register(idt.VecATAPrimary, ackOnly(idt.VecATAPrimary))
	k.IDT.Register(idt.VecATASecondary, ackOnly(idt.VecATASecondary))
}

/// MountAndAttach programs the given ATA bus/drive (or a RAM disk when
/// bus is nil) as the process-wide mount, then validates and attaches
/// the FAT filesystem, per spec.md §2's final two control-flow steps.
func (k *Kernel) MountAndAttach(bus *ata.BusID, drive uint8, memBlocks int) (*fs.FS, kernelerr.Err_t) {
	if k.Cache == nil {
		backend := &ata.Registers{}
		if bus != nil {
			regs := ata.NewRegisters(*bus, k.Log)
			backend = &regs
		}
		k.Cache = blkcache.New(backend)
	}

	var dev *blkdev.Device
	if bus != nil {
		regs := ata.NewRegisters(*bus, k.Log)
		dev = blkdev.NewATA(uint8(*bus), drive, &regs, k.Cache)
	} else {
		dev = blkdev.NewMem(memBlocks)
	}

	if err := blkdev.Global.Set(dev); !err.Ok() {
		return nil, err
	}

	fsys, err := fs.Mount(dev)
	if !err.Ok() {
		fmt.Fprintf(k.Log, "fs mount failed: %v\n", err)
		return nil, err
	}
	return fsys, kernelerr.ENone
}

/// Panic logs msg and a deduplicated call stack, then halts the CPU,
/// matching spec.md §7's "Fatal conditions... panic: emit a line to the
/// serial log and halt."
func (k *Kernel) Panic(msg string) {
	fmt.Fprintf(k.Log, "PANIC: %s\n", msg)
	if distinct, trace := k.panicTrace.Distinct(); distinct {
		fmt.Fprintf(k.Log, "%s", trace)
	}
	for {
		ioport.Cli()
		haltForever()
	}
}

//go:linkname haltForever runtime.hlt
func haltForever()
