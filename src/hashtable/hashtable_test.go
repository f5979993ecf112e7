package hashtable

import "testing"

func strHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func TestSetGet(t *testing.T) {
	tbl := New[string, int](16, strHash)
	if !tbl.Set("a", 1) {
		t.Fatal("Set(a) on a fresh table returned false")
	}
	if got, ok := tbl.Get("a"); !ok || got != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", got, ok)
	}
}

func TestSetExistingKeyFails(t *testing.T) {
	tbl := New[string, int](16, strHash)
	tbl.Set("a", 1)
	if tbl.Set("a", 2) {
		t.Error("Set(a) on an existing key returned true, want false")
	}
	got, _ := tbl.Get("a")
	if got != 1 {
		t.Errorf("value after a rejected overwrite = %d, want unchanged 1", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	tbl := New[string, int](16, strHash)
	if _, ok := tbl.Get("missing"); ok {
		t.Error("Get on a missing key returned ok=true")
	}
}

func TestDelRemovesKey(t *testing.T) {
	tbl := New[string, int](16, strHash)
	tbl.Set("a", 1)
	tbl.Del("a")
	if _, ok := tbl.Get("a"); ok {
		t.Error("Get after Del still finds the key")
	}
	if tbl.Size() != 0 {
		t.Errorf("Size() after Del = %d, want 0", tbl.Size())
	}
}

func TestDelMissingKeyIsNoop(t *testing.T) {
	tbl := New[string, int](16, strHash)
	tbl.Del("never-inserted") // must not panic
}

func TestSizeTracksInsertsAcrossBuckets(t *testing.T) {
	tbl := New[string, int](4, strHash)
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, k := range keys {
		if !tbl.Set(k, i) {
			t.Fatalf("Set(%q) failed", k)
		}
	}
	if tbl.Size() != len(keys) {
		t.Errorf("Size() = %d, want %d", tbl.Size(), len(keys))
	}
	for i, k := range keys {
		if got, ok := tbl.Get(k); !ok || got != i {
			t.Errorf("Get(%q) = (%d, %v), want (%d, true)", k, got, ok, i)
		}
	}
}

func TestBucketChainStaysSortedByHash(t *testing.T) {
	// Force every key into bucket 0 of a single-bucket table so the chain
	// order is exercised directly.
	tbl := New[string, int](1, strHash)
	for _, k := range []string{"zzz", "aaa", "mmm"} {
		tbl.Set(k, 0)
	}
	prev := uint32(0)
	for e := tbl.table[0].first; e != nil; e = e.next {
		if e.keyHash < prev {
			t.Errorf("chain not sorted ascending by hash: %d after %d", e.keyHash, prev)
		}
		prev = e.keyHash
	}
}
