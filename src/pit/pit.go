// Package pit programs the legacy 8253/8254 programmable interval
// timer and exposes a monotonic tick counter plus blocking sleep/uptime
// helpers, ported from original_source's pit.rs (set_frequency's
// command-byte construction, reload-value division, and the
// uptime-polling sleep loop).
package pit

import (
	"sync/atomic"

	"cfskernel/src/ioport"
)

/// BaseFreq is the PIT's fixed oscillator frequency in Hz (1.193182 MHz,
/// matching original_source's PIT_BASE_FREQ constant, scaled to a plain
/// integer Hz value instead of its 10x-scaled fixed-point constant).
const BaseFreq = 1193182

const (
	channel0Data = 0x40
	modeCommand  = 0x43
)

/// ticks is the monotonic interrupt counter, advanced once per timer
/// IRQ. It is read under interrupts-disabled guard on 32-bit targets and
/// atomically on 64-bit ones, per spec.md's shared-state contract; this
/// target is always 64-bit so atomic access is always safe.
var ticks int64

/// pollingHz records the programmed interrupt frequency so Sleep can
/// convert a millisecond duration into a tick count.
var pollingHz uint32 = 18

/// SetFrequency programs PIT channel 0 to fire at hz interrupts per
/// second, using mode 2 (rate generator) and the LoByte/HiByte access
/// pattern original_source's set_frequency uses.
func SetFrequency(hz uint16) {
	const (
		accessLoHi = 0b11 << 4
		mode2      = 0b010 << 1
	)
	command := uint8(accessLoHi | mode2)

	reload := uint16(BaseFreq / uint32(hz))

	ioport.WithInterruptsDisabled(func() {
		ioport.Outb(modeCommand, command)
		ioport.Outb(channel0Data, uint8(reload&0xFF))
		ioport.Outb(channel0Data, uint8(reload>>8))
		pollingHz = uint32(hz)
	})
}

/// Tick advances the monotonic counter by one; the timer IRQ handler
/// calls this once per interrupt before acknowledging it.
func Tick() {
	atomic.AddInt64(&ticks, 1)
}

/// Uptime returns the number of timer ticks delivered since boot.
func Uptime() int64 {
	return atomic.LoadInt64(&ticks)
}

/// PollingRate returns the currently programmed interrupt frequency in Hz.
func PollingRate() uint32 {
	return pollingHz
}

/// Sleep busy-waits, with interrupts enabled, until at least millis
/// milliseconds of tick time have elapsed. There is no scheduler to
/// yield to, so this is a spin loop exactly as original_source's sleep
/// is, scaled by the programmed polling rate instead of assuming a
/// fixed 1000Hz tick.
func Sleep(millis int) {
	target := int64(millis) * int64(PollingRate()) / 1000
	if target == 0 {
		target = 1
	}
	start := Uptime()
	for Uptime()-start < target {
		ioport.Sti()
	}
}
