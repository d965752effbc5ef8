package proc

import (
	"sync/atomic"

	"hashtable"
	"limits"
	"oommsg"
	"vm"
)

var nextPid int64

/// registry maps every live Pid to its Process, for diagnostics — a
/// new home for the teacher's hashtable, generalized from its original
/// fd-table use.
var registry = hashtable.MkHash(1024)

/// Null is the immutable sentinel GET returns for a non-existent
/// child: always STOP, never mutated, never scheduled (spec.md §3
/// invariant 4). Modeled as a singleton rather than a nullable return
/// so callers never branch on absence.
var Null = &Process{Pid: -1, State: STOP, AS: vm.NewAS()}

/// Alloc allocates a new process as a child of parent at slot idx. A
/// nil parent allocates a root process with no entry in any child
/// table — the monitor's own bootstrap process, for instance. Alloc
/// panics — per spec.md §7 class 3 — if the system-wide process-table
/// budget is exhausted, having first posted to oommsg so a monitor can
/// observe the exhaustion.
func Alloc(parent *Process, idx uint32) *Process {
	if !limits.Syslimit.Sysprocs.Take() {
		oommsg.Notify("proc.table", 1)
		panic("proc: no memory for child")
	}
	pid := int(atomic.AddInt64(&nextPid, 1))
	child := newProcess(parent, pid)
	if parent != nil {
		parent.Children[idx] = child
	}
	registry.Set(pid, child)
	return child
}

/// Lookup returns the process with the given pid, if still live.
func Lookup(pid int) (*Process, bool) {
	v, ok := registry.Get(pid)
	if !ok {
		return nil, false
	}
	return v.(*Process), true
}

/// Count returns the number of live, registered processes.
func Count() int {
	return registry.Size()
}
