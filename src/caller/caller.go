// Package caller walks and deduplicates Go call stacks, used by the
// kernel's fatal-panic path to print a stack trace to the log sink
// before halting.
package caller

import (
	"fmt"
	"io"
	"runtime"
	"sync"
)

/// Dump writes the call stack starting at the given frame depth to w, the
/// way biscuit's Callerdump writes to stdout — generalized to an
/// io.Writer so it can target the kernel's serial log sink instead of a
/// hosted process's stdout.
func Dump(w io.Writer, start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Fprintf(w, "%s", s)
}

/// Distinct_caller_t tracks whether a call chain has been seen before, so
/// a noisy call site logs its stack trace once per distinct ancestor
/// path instead of on every call. Fields are protected by the embedded
/// mutex.
type Distinct_caller_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

func (dc *Distinct_caller_t) _pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("caller: empty pc slice")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

/// Len returns the number of unique caller paths recorded so far.
func (dc *Distinct_caller_t) Len() int {
	dc.Lock()
	ret := len(dc.did)
	dc.Unlock()
	return ret
}

/// Distinct reports whether the current call chain is new. The chain
/// starts at the caller of the function that called Distinct. It returns
/// true along with a formatted stack trace when the chain has not been
/// seen before; it returns false and no trace when the chain was seen
/// before or passes through a function named in Whitel.
func (dc *Distinct_caller_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}

	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			panic("caller: runtime.Callers returned nothing")
		}
	}
	h := dc._pchash(pcs)
	if ok := dc.did[h]; !ok {
		dc.did[h] = true
		frames := runtime.CallersFrames(pcs)
		fs := ""
		for {
			fr, more := frames.Next()
			if ok := dc.Whitel[fr.Function]; ok {
				return false, ""
			}
			if fs == "" {
				fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
			} else {
				fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
			}
			if !more || fr.Function == "runtime.goexit" {
				break
			}
		}
		return true, fs
	}
	return false, ""
}
