// Package idt owns the interrupt vector table: 256 slots, each either
// unset or bound to a handler with a fixed calling convention. Vectors
// 0-31 are CPU exceptions, 32-47 are the remapped legacy IRQs. Grounded
// on original_source's arch/idt.rs (default exception handlers,
// per-vector registration) and on gopher-os's vmm.go page-fault handler
// for the demand-mapping recovery policy biscuit's own mem/vm packages
// never needed (biscuit never restricts demand-paging to kernel-only
// regions the way spec.md does).
package idt

import (
	"fmt"
	"io"
	"sync"
	_ "unsafe" // for go:linkname

	"cfskernel/src/ioport"
	"cfskernel/src/pic"
)

const NumVectors = 256

// Fixed legacy IRQ vector assignments (spec.md's remapped table).
const (
	VecTimer        = 0x20
	VecKeyboard     = 0x21
	VecRTC          = 0x28
	VecMouse        = 0x2C
	VecATAPrimary   = 0x2E
	VecATASecondary = 0x2F

	VecPageFault        = 14
	VecGeneralProtection = 13
	VecDoubleFault       = 8
	VecDivideError       = 0
	VecBreakpoint        = 3
)

/// Frame carries the minimal interrupt-stack-frame information a handler
/// needs: the faulting/interrupted instruction pointer and, for
/// exceptions that push one, the error code.
type Frame struct {
	RIP       uintptr
	ErrorCode uint64
}

/// Handler is the fixed calling convention every registered vector must
/// satisfy. Handlers run with interrupts disabled and must not block.
type Handler func(Frame)

/// PageMapper is the minimal collaborator the page-fault handler needs
/// from src/vm: map one fresh frame at a faulting kernel virtual address.
/// Kept as a narrow interface so idt does not import vm directly.
type PageMapper interface {
	/// DemandMap maps a fresh present+writable frame at va if va falls
	/// inside the kernel region and has never been mapped. It reports
	/// whether the fault was recoverable.
	DemandMap(va uintptr) bool
}

/// Table is the process-wide interrupt vector table: a singleton
/// resource, installed once and mutated only through Register, protected
/// by a spin-mutex taken with interrupts disabled (spec.md's shared
/// global-state model).
type Table struct {
	mu       sync.Mutex
	handlers [NumVectors]Handler
	log      io.Writer
	mapper   PageMapper
}

/// New builds an empty vector table that logs unhandled faults to log
/// and consults mapper to resolve recoverable page faults.
func New(log io.Writer, mapper PageMapper) *Table {
	t := &Table{log: log, mapper: mapper}
	t.handlers[VecBreakpoint] = t.breakpoint
	t.handlers[VecDoubleFault] = t.doubleFault
	t.handlers[VecGeneralProtection] = t.generalProtection
	t.handlers[VecDivideError] = t.divideError
	t.handlers[VecPageFault] = t.pageFault
	return t
}

/// Register installs handler at vector, replacing any prior binding.
/// Interrupts must already be disabled by the caller, matching the
/// "protected by a spin-mutex held only with interrupts disabled"
/// contract spec.md places on the vector table.
func (t *Table) Register(vector int, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[vector] = handler
}

/// Install publishes the vector table to the CPU. The actual LIDT
/// instruction is below any Go abstraction's reach and lives in the
/// assembly stub this function links against, the same boundary
/// src/ioport draws for port I/O.
//
//go:linkname Install runtime.lidt
func Install()

/// Dispatch is called by the assembly trampoline for every interrupt;
/// it runs the registered handler if any, and falls back to logging an
/// unhandled vector. It does not change the interrupt flag itself.
func (t *Table) Dispatch(vector int, f Frame) {
	t.mu.Lock()
	h := t.handlers[vector]
	t.mu.Unlock()
	if h == nil {
		fmt.Fprintf(t.log, "unhandled interrupt vector %#x at %#x\n", vector, f.RIP)
		return
	}
	h(f)
}

func (t *Table) breakpoint(f Frame) {
	fmt.Fprintf(t.log, "breakpoint @ %#x\n", f.RIP)
}

func (t *Table) doubleFault(f Frame) {
	panic(fmt.Sprintf("double fault @ %#x", f.RIP))
}

func (t *Table) generalProtection(f Frame) {
	fmt.Fprintf(t.log, "general protection fault, code=%#x @ %#x\n", f.ErrorCode, f.RIP)
	haltCPU()
}

func (t *Table) divideError(f Frame) {
	fmt.Fprintf(t.log, "divide error @ %#x\n", f.RIP)
}

/// pageFault implements spec.md's policy: a not-present fault on a
/// kernel virtual page that has never been mapped may be demand-mapped
/// with a fresh frame; any other fault is fatal.
func (t *Table) pageFault(f Frame) {
	const presentBit = 1
	notPresent := f.ErrorCode&presentBit == 0
	cr2 := readCR2()
	if notPresent && t.mapper != nil && t.mapper.DemandMap(cr2) {
		return
	}
	fmt.Fprintf(t.log, "fatal page fault: addr=%#x code=%#x rip=%#x\n", cr2, f.ErrorCode, f.RIP)
	haltCPU()
}

//go:linkname readCR2 runtime.readcr2
func readCR2() uintptr

func haltCPU() {
	for {
		ioport.Cli()
		hlt()
	}
}

//go:linkname hlt runtime.hlt
func hlt()

/// AcknowledgeIRQ signals end-of-interrupt for the hardware line that
/// produced vector. Every IRQ handler must call this exactly once;
/// omitting it silently starves further IRQs of that line (spec.md's
/// acknowledge contract).
func AcknowledgeIRQ(vector int) {
	irq := vector - VecTimer
	pic.NotifyEOI(irq)
}
