// Package stats provides lightweight, reflection-dumpable counters used to
// instrument the syscall dispatcher and the process table.
package stats

import "reflect"
import "strconv"
import "strings"
import "sync/atomic"
import "time"

/// Counter_t is a statistical counter. Unlike the teacher's original,
/// which gates counting behind a build-time const so a cold kernel build
/// pays nothing for it, this kernel core always counts — there is no hot
/// path here an always-on int64 add would meaningfully disturb.
type Counter_t int64

/// Cycles_t accumulates elapsed wall-clock time in nanoseconds. The
/// teacher's original used runtime.Rdtsc(), a patched-runtime cycle
/// counter unavailable outside a from-scratch kernel build; time.Since
/// is the hosted equivalent.
type Cycles_t int64

/// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

/// Add adds elapsed time since start to the cycle counter.
func (c *Cycles_t) Add(start time.Time) {
	atomic.AddInt64((*int64)(c), int64(time.Since(start)))
}

/// Get reads the current value of a counter.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

/// Stats2String converts a struct of Counter_t/Cycles_t fields into a
/// printable report, one line per field.
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := &strings.Builder{}
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		t := f.Type().String()
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := f.Interface().(Counter_t)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10))
		case strings.HasSuffix(t, "Cycles_t"):
			n := f.Interface().(Cycles_t)
			d := time.Duration(n)
			s.WriteString("\n\t#" + v.Type().Field(i).Name + ": " + d.String())
		}
	}
	s.WriteString("\n")
	return s.String()
}
