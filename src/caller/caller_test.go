package caller

import (
	"bytes"
	"strings"
	"testing"
)

func TestDumpWritesFrames(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, 0)
	out := buf.String()
	if out == "" {
		t.Fatal("Dump wrote nothing")
	}
	if !strings.Contains(out, "caller_test.go") {
		t.Errorf("Dump output missing this test file: %q", out)
	}
}

func TestDistinctDisabledByDefault(t *testing.T) {
	var dc Distinct_caller_t
	distinct, _ := dc.Distinct()
	if distinct {
		t.Error("Distinct() on a disabled tracker returned true")
	}
	if dc.Len() != 0 {
		t.Errorf("Len() = %d, want 0 when disabled", dc.Len())
	}
}

func callSite(dc *Distinct_caller_t) (bool, string) {
	return dc.Distinct()
}

func TestDistinctFirstThenRepeat(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}

	// Both calls go through the same call site: the chain hash covers
	// exact return addresses, so two different lines are two chains.
	for i := 0; i < 2; i++ {
		distinct, trace := callSite(dc)
		if i == 0 {
			if !distinct {
				t.Fatal("first call through a new chain should be distinct")
			}
			if trace == "" {
				t.Error("distinct call produced an empty trace")
			}
			if dc.Len() != 1 {
				t.Errorf("Len() = %d, want 1 after one distinct chain", dc.Len())
			}
			continue
		}
		if distinct {
			t.Error("repeating the same call chain should not be distinct again")
		}
		if dc.Len() != 1 {
			t.Errorf("Len() = %d, want 1 after a repeat", dc.Len())
		}
	}
}

func TestDistinctWhitelistSuppresses(t *testing.T) {
	// The recorded chain starts at callSite's caller, so the whitelisted
	// function is this test itself.
	dc := &Distinct_caller_t{Enabled: true, Whitel: map[string]bool{
		"cfskernel/src/caller.TestDistinctWhitelistSuppresses": true,
	}}
	distinct, _ := callSite(dc)
	if distinct {
		t.Error("a chain passing through a whitelisted function should not be distinct")
	}
}
