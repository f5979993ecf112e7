package blkcache

import (
	"testing"

	"cfskernel/src/ata"
	"cfskernel/src/kernelerr"
)

type fakeBackend struct {
	reads, writes int
	disk          map[uint32]ata.Sector
	failRead      map[uint32]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{disk: make(map[uint32]ata.Sector), failRead: make(map[uint32]bool)}
}

func (b *fakeBackend) ReadBlock(drive uint8, block uint32) (ata.Sector, kernelerr.Err_t) {
	b.reads++
	if b.failRead[block] {
		return ata.Sector{}, kernelerr.EIO
	}
	return b.disk[block], kernelerr.ENone
}

func (b *fakeBackend) WriteBlock(drive uint8, block uint32, buf ata.Sector) kernelerr.Err_t {
	b.writes++
	b.disk[block] = buf
	return kernelerr.ENone
}

func sectorOf(b byte) ata.Sector {
	var s ata.Sector
	s[0] = b
	return s
}

func TestReadMissThenHit(t *testing.T) {
	backend := newFakeBackend()
	backend.disk[10] = sectorOf(0xAA)
	c := New(backend)

	data, err := c.Read(0, 0, 10)
	if !err.Ok() || data[0] != 0xAA {
		t.Fatalf("first Read() = (%v, %v), want (0xAA.., ok)", data, err)
	}
	if c.Misses.Get() != 1 || c.Hits.Get() != 0 {
		t.Errorf("after a miss: hits=%d misses=%d, want hits=0 misses=1", c.Hits.Get(), c.Misses.Get())
	}

	readsAfterMiss := backend.reads
	data2, err := c.Read(0, 0, 10)
	if !err.Ok() || data2[0] != 0xAA {
		t.Fatalf("second Read() = (%v, %v), want cached 0xAA", data2, err)
	}
	if backend.reads != readsAfterMiss {
		t.Error("a cache hit should not touch the backend")
	}
	if c.Hits.Get() != 1 {
		t.Errorf("Hits = %d, want 1", c.Hits.Get())
	}
}

func TestReadMissTriggersReadAhead(t *testing.T) {
	backend := newFakeBackend()
	for lba := uint32(100); lba < 120; lba++ {
		backend.disk[lba] = sectorOf(byte(lba))
	}
	c := New(backend)

	if _, err := c.Read(0, 0, 100); !err.Ok() {
		t.Fatalf("Read() failed: %v", err)
	}

	// The next sequential block should already be cached by read-ahead.
	readsBefore := backend.reads
	data, err := c.Read(0, 0, 101)
	if !err.Ok() || data[0] != byte(101) {
		t.Fatalf("Read(101) = (%v, %v), want cached sector 101", data, err)
	}
	if backend.reads != readsBefore {
		t.Error("read-ahead should have pre-populated block 101; backend was hit again")
	}
}

func TestWriteIsWriteThrough(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend)

	if err := c.Write(0, 0, 5, sectorOf(0x42)); !err.Ok() {
		t.Fatalf("Write() failed: %v", err)
	}
	if backend.disk[5][0] != 0x42 {
		t.Error("Write did not reach the backend synchronously")
	}

	readsBefore := backend.reads
	data, err := c.Read(0, 0, 5)
	if !err.Ok() || data[0] != 0x42 {
		t.Fatalf("Read after Write = (%v, %v), want cached 0x42", data, err)
	}
	if backend.reads != readsBefore {
		t.Error("reading a block just written should hit the cache, not the backend")
	}
}

func TestReadMissPropagatesBackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.failRead[7] = true
	c := New(backend)

	if _, err := c.Read(0, 0, 7); err.Ok() {
		t.Error("Read of a failing block reported success")
	}
}

func TestEvictionRespectsCapacity(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend)
	c.capacity = 2 // shrink for a fast, deterministic test

	c.insert(Fingerprint{LBA: 1}, sectorOf(1))
	c.insert(Fingerprint{LBA: 2}, sectorOf(2))
	c.insert(Fingerprint{LBA: 3}, sectorOf(3)) // evicts LBA 1 (least recently used)

	if _, ok := c.index.Get(Fingerprint{LBA: 1}); ok {
		t.Error("oldest entry was not evicted once capacity was exceeded")
	}
	if _, ok := c.index.Get(Fingerprint{LBA: 3}); !ok {
		t.Error("most recently inserted entry is missing")
	}
	if c.lru.Len() != 2 {
		t.Errorf("lru.Len() = %d, want 2", c.lru.Len())
	}
}

func TestTouchPreservesRecentlyUsedOnEviction(t *testing.T) {
	backend := newFakeBackend()
	c := New(backend)
	c.capacity = 2

	c.insert(Fingerprint{LBA: 1}, sectorOf(1))
	c.insert(Fingerprint{LBA: 2}, sectorOf(2))
	// Touch LBA 1 so LBA 2 becomes the least recently used entry.
	if e, ok := c.index.Get(Fingerprint{LBA: 1}); ok {
		c.touch(e)
	}
	c.insert(Fingerprint{LBA: 3}, sectorOf(3))

	if _, ok := c.index.Get(Fingerprint{LBA: 2}); ok {
		t.Error("LBA 2 should have been evicted after being passed over by touch")
	}
	if _, ok := c.index.Get(Fingerprint{LBA: 1}); !ok {
		t.Error("LBA 1 should have survived eviction after being touched")
	}
}
