package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	cases := []struct{ v, b, up, down int }{
		{0, 4096, 0, 0},
		{1, 4096, 4096, 0},
		{4096, 4096, 4096, 4096},
		{4097, 4096, 8192, 4096},
	}
	for _, c := range cases {
		if got := Roundup(c.v, c.b); got != c.up {
			t.Errorf("Roundup(%d,%d) = %d, want %d", c.v, c.b, got, c.up)
		}
		if got := Rounddown(c.v, c.b); got != c.down {
			t.Errorf("Rounddown(%d,%d) = %d, want %d", c.v, c.b, got, c.down)
		}
	}
}

func TestIsPow2(t *testing.T) {
	for _, v := range []int{1, 2, 4, 4096} {
		if !IsPow2(v) {
			t.Errorf("IsPow2(%d) = false, want true", v)
		}
	}
	for _, v := range []int{0, 3, 5, 4095} {
		if IsPow2(v) {
			t.Errorf("IsPow2(%d) = true, want false", v)
		}
	}
}

func TestBE32RoundTrip(t *testing.T) {
	buf := make([]uint8, 8)
	WriteBE32(buf, 2, 0xDEADBEEF)
	if got := ReadBE32(buf, 2); got != 0xDEADBEEF {
		t.Errorf("ReadBE32 = 0x%X, want 0xDEADBEEF", got)
	}
	// Big-endian: most significant byte first.
	if buf[2] != 0xDE || buf[3] != 0xAD || buf[4] != 0xBE || buf[5] != 0xEF {
		t.Errorf("WriteBE32 byte order wrong: %x", buf[2:6])
	}
}
