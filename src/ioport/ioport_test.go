package ioport

import (
	"testing"
	"unsafe"
)

// setDirectMap points DirectMapBase at a real Go-owned buffer so the MMIO
// helpers can be exercised without an actual physical direct map. The port
// I/O and interrupt-flag primitives (Outb/Inb/Cli/Sti) are go:linkname'd to
// hand-written assembly that only exists in the freestanding kernel build
// and cannot be exercised from a hosted test binary.
func setDirectMap(t *testing.T, buf []byte) {
	t.Helper()
	DirectMapBase = uintptr(unsafe.Pointer(&buf[0]))
	t.Cleanup(func() { DirectMapBase = 0 })
}

func TestMMIO8ReadWrite(t *testing.T) {
	buf := make([]byte, 16)
	setDirectMap(t, buf)

	*MMIO8(4) = 0xAB
	if buf[4] != 0xAB {
		t.Errorf("buf[4] = 0x%x, want 0xAB", buf[4])
	}
	if got := *MMIO8(4); got != 0xAB {
		t.Errorf("MMIO8(4) read back = 0x%x, want 0xAB", got)
	}
}

func TestMMIO32AlignedReadWrite(t *testing.T) {
	buf := make([]byte, 16)
	setDirectMap(t, buf)

	WriteMMIO32(8, 0x01020304)
	if got := ReadMMIO32(8); got != 0x01020304 {
		t.Errorf("ReadMMIO32(8) = 0x%x, want 0x01020304", got)
	}
}

func TestMMIO32PanicsOnUnaligned(t *testing.T) {
	buf := make([]byte, 16)
	setDirectMap(t, buf)

	defer func() {
		if recover() == nil {
			t.Error("MMIO32(2) did not panic on an unaligned address")
		}
	}()
	MMIO32(2)
}
