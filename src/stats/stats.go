// Package stats provides small atomic counters used by the block cache
// and the ATA driver for observability, adapted from biscuit's
// stats.Counter_t / stats.Cycles_t.
package stats

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

/// Counter_t is a monotonically increasing statistical counter.
type Counter_t struct {
	v int64
}

/// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64(&c.v, 1)
}

/// Add adds delta to the counter.
func (c *Counter_t) Add(delta int64) {
	atomic.AddInt64(&c.v, delta)
}

/// Get returns the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64(&c.v)
}

/// String satisfies fmt.Stringer.
func (c *Counter_t) String() string {
	return strconv.FormatInt(c.Get(), 10)
}

/// Stats2String converts a struct of Counter_t fields to a printable
/// multi-line string, the way biscuit's stats.Stats2String does for its
/// Counter_t/Cycles_t pairs.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		name := v.Type().Field(i).Name
		f := v.Field(i)
		if !strings.HasSuffix(f.Type().String(), "Counter_t") {
			continue
		}
		c := f.Addr().Interface().(*Counter_t)
		s += fmt.Sprintf("\n\t#%s: %d", name, c.Get())
	}
	return s + "\n"
}
