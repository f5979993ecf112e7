package blkdev

import (
	"testing"

	"cfskernel/src/ata"
	"cfskernel/src/kernelerr"
)

// The KindATA branch of every method below resolves through *ata.Registers
// and *blkcache.Cache, both of which drive real I/O ports and are exercised
// by ata's and blkcache's own test files; only the KindMem branch is
// hosted-testable here.

func TestDeviceInfoString(t *testing.T) {
	info := DeviceInfo{blocks: 42, name: "memory"}
	if info.Wblocks() != 42 {
		t.Errorf("Wblocks() = %d, want 42", info.Wblocks())
	}
	if info.Wname() != "memory" {
		t.Errorf("Wname() = %q, want %q", info.Wname(), "memory")
	}
	if got, want := info.String(), "memory: 42 blocks"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNewMemZeroInitialized(t *testing.T) {
	dev := NewMem(4)
	sec, err := dev.Read(0)
	if !err.Ok() {
		t.Fatalf("Read(0) failed: %v", err)
	}
	var zero ata.Sector
	if sec != zero {
		t.Error("NewMem sector 0 is not zero-initialized")
	}
}

func TestNewMemFromSectorsWrapsWithoutCopy(t *testing.T) {
	sectors := make([]ata.Sector, 2)
	sectors[0][0] = 0xAB
	dev := NewMemFromSectors(sectors)
	sec, err := dev.Read(0)
	if !err.Ok() || sec[0] != 0xAB {
		t.Fatalf("Read(0) = (%v, %v), want (0xAB.., ok)", sec, err)
	}
	if err := dev.Write(1, [512]byte{1: 0xCD}); !err.Ok() {
		t.Fatalf("Write failed: %v", err)
	}
	if sectors[1][1] != 0xCD {
		t.Error("NewMemFromSectors does not share storage with the original slice")
	}
}

func TestSectorsPanicsOnATADevice(t *testing.T) {
	dev := NewATA(0, 0, nil, nil)
	defer func() {
		if recover() == nil {
			t.Error("Sectors() on an ATA device did not panic")
		}
	}()
	dev.Sectors()
}

func TestReadWriteOutOfRangeFails(t *testing.T) {
	dev := NewMem(2)
	if _, err := dev.Read(5); err.Ok() {
		t.Error("Read out of range reported success")
	}
	if err := dev.Write(5, ata.Sector{}); err.Ok() {
		t.Error("Write out of range reported success")
	}
}

func TestReadRangeWriteRangeRoundTrip(t *testing.T) {
	dev := NewMem(4)
	in := make([]ata.Sector, 3)
	for i := range in {
		in[i][0] = byte(i + 1)
	}
	if err := dev.WriteRange(1, in); !err.Ok() {
		t.Fatalf("WriteRange failed: %v", err)
	}
	out := make([]ata.Sector, 3)
	if err := dev.ReadRange(1, out); !err.Ok() {
		t.Fatalf("ReadRange failed: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("ReadRange[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestExistsTrueForMemDevice(t *testing.T) {
	dev := NewMem(1)
	if !dev.Exists() {
		t.Error("Exists() on a memory device = false, want true")
	}
}

func TestMountSetAndDevice(t *testing.T) {
	m := &Mount{}
	dev := NewMem(1)
	if err := m.Set(dev); !err.Ok() {
		t.Fatalf("Set() failed: %v", err)
	}
	got, err := m.Device()
	if !err.Ok() || got != dev {
		t.Fatalf("Device() = (%v, %v), want (%v, ok)", got, err, dev)
	}
}

func TestMountDeviceNotMounted(t *testing.T) {
	m := &Mount{}
	if _, err := m.Device(); err != kernelerr.ENotMounted {
		t.Errorf("Device() on an empty mount = %v, want ENotMounted", err)
	}
}

func TestGlobalReadWriteResolveThroughMount(t *testing.T) {
	saved := Global.current
	defer func() { Global.current = saved }()

	dev := NewMem(2)
	if err := Global.Set(dev); !err.Ok() {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := Write(0, ata.Sector{0: 0x9}); !err.Ok() {
		t.Fatalf("package Write failed: %v", err)
	}
	sec, err := Read(0)
	if !err.Ok() || sec[0] != 0x9 {
		t.Fatalf("package Read() = (%v, %v), want (0x9.., ok)", sec, err)
	}
}
