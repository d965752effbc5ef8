// Package console is the byte sink CPUTS forwards to: an out-of-scope
// collaborator per spec.md §1, modeled here rather than left a stub so
// the whole dispatch surface is exercisable end to end.
package console

import (
	"circbuf"
	"klog"
	"mem"
)

/// Sink accepts the null-terminated strings CPUTS decodes.
type Sink interface {
	Write(s string)
}

var log = klog.For("console")

/// Default is a Sink backed by the teacher's circbuf.Circbuf_t (reused
/// as the staging buffer so writes never block a syscall on a slow
/// downstream), draining through klog.
type Default struct {
	cb circbuf.Circbuf_t
}

/// NewDefault returns a ready-to-use Default sink staging through a
/// single simulated physical page.
func NewDefault() *Default {
	d := &Default{}
	d.cb.Cb_init(mem.PGSIZE, mem.Physmem)
	return d
}

/// Write stages s through the circular buffer and immediately drains
/// it to the log, so a full buffer never silently drops output — CPUTS
/// always writes fewer bytes than one page.
func (d *Default) Write(s string) {
	if _, err := d.cb.Write([]byte(s)); err != 0 {
		log.Error("console buffer unavailable", "err", err)
		return
	}
	out := make([]byte, d.cb.Used())
	d.cb.Read(out)
	log.Info("cputs", "text", string(out))
}
