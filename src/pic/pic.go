// Package pic remaps and drives the legacy 8259 programmable interrupt
// controller pair, the way original_source's arch/pic.rs wraps the
// pic8259 crate's ChainedPics — restated here directly over src/ioport
// since the pack carries no Go equivalent of that crate and the
// sequence is a dozen register writes, not a library-shaped problem.
package pic

import "cfskernel/src/ioport"

const (
	pic1Cmd  = 0x20
	pic1Data = 0x21
	pic2Cmd  = 0xA0
	pic2Data = 0xA1

	icw1Init = 0x11
	icw4_8086 = 0x01
)

/// Offset1 and Offset2 are the remapped interrupt vector bases for PIC1
/// and PIC2, matching original_source's PIC1=0x20 / PIC2=PIC1+8 so
/// hardware IRQs land well clear of the CPU's reserved exception
/// vectors 0-31.
const (
	Offset1 = 0x20
	Offset2 = Offset1 + 8
)

/// Init remaps both PICs so IRQ0-7 land at Offset1..Offset1+7 and
/// IRQ8-15 land at Offset2..Offset2+7, and unmasks every line.
func Init() {
	ioport.Outb(pic1Cmd, icw1Init)
	ioport.Outb(pic2Cmd, icw1Init)
	ioport.Outb(pic1Data, Offset1)
	ioport.Outb(pic2Data, Offset2)
	ioport.Outb(pic1Data, 4) // tell PIC1 it has a slave on IRQ2
	ioport.Outb(pic2Data, 2) // tell PIC2 its cascade identity
	ioport.Outb(pic1Data, icw4_8086)
	ioport.Outb(pic2Data, icw4_8086)

	ioport.Outb(pic1Data, 0)
	ioport.Outb(pic2Data, 0)
}

/// NotifyEOI sends an end-of-interrupt for hardware IRQ line irq (0-15),
/// signaling PIC2 too when irq is a slave line (8-15).
func NotifyEOI(irq int) {
	if irq >= 8 {
		ioport.Outb(pic2Cmd, 0x20)
	}
	ioport.Outb(pic1Cmd, 0x20)
}

/// Mask disables a single IRQ line (0-15).
func Mask(irq int) {
	port := uint16(pic1Data)
	if irq >= 8 {
		port = pic2Data
		irq -= 8
	}
	v := ioport.Inb(port)
	ioport.Outb(port, v|(1<<uint(irq)))
}

/// Unmask enables a single IRQ line (0-15).
func Unmask(irq int) {
	port := uint16(pic1Data)
	if irq >= 8 {
		port = pic2Data
		irq -= 8
	}
	v := ioport.Inb(port)
	ioport.Outb(port, v&^(1<<uint(irq)))
}
