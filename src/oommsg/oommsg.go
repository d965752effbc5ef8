// Package oommsg carries out-of-memory notifications from allocators that
// would otherwise fail silently (or panic) deep inside a syscall handler.
package oommsg

/// OomCh is notified whenever an allocator in this kernel runs out of
/// backing store. A listener (a monitor or a test) can drain it for
/// diagnostics; nothing requires a reader, so a send never blocks an
/// allocator — the channel is buffered and sends are best-effort.
var OomCh chan Oommsg_t = make(chan Oommsg_t, 16)

/// Oommsg_t describes one exhaustion event.
type Oommsg_t struct {
	Source string /// which allocator/operation ran dry
	Need   int    /// units requested when it ran dry
}

/// Notify posts msg on OomCh without blocking the caller.
func Notify(source string, need int) {
	select {
	case OomCh <- Oommsg_t{Source: source, Need: need}:
	default:
	}
}
