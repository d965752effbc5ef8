// Package vm models one process's address space: its page map, its
// merge-baseline snapshot, and the fault-tolerant primitives
// (Usercopy, Userstr) that move bytes across the user/kernel boundary.
package vm

import (
	"sync"

	"mem"
)

/// AS_t represents a process address space. The mutex protects Pdir
/// and Rpdir the way the teacher's Vm_t protects Pmap/P_pmap; it is the
/// same lock spec.md §5 calls "the child's STOP state pins it instead
/// of a lock" — here it is an explicit mutex because nothing else
/// enforces that invariant in a hosted simulation.
type AS_t struct {
	sync.Mutex

	Pdir  mem.Pmap_t /// active page map
	Rpdir mem.Pmap_t /// merge-baseline snapshot; nil until the first SNAP

	pgfltaken bool
}

/// NewAS returns an empty address space.
func NewAS() *AS_t {
	return &AS_t{Pdir: make(mem.Pmap_t)}
}

/// Lock_pmap acquires the address-space mutex and marks that page-map
/// manipulation is in progress, the way the teacher's Lock_pmap does.
func (as *AS_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

/// Unlock_pmap releases the address-space mutex after page-map
/// manipulation completes.
func (as *AS_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

/// Lockassert_pmap panics if the address-space mutex is not held.
func (as *AS_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("vm: pgfl lock must be held")
	}
}

/// Snapshotted reports whether Rpdir has ever been populated by SNAP.
/// mem.Merge's baseline (spec.md §9 open question 1) is always exactly
/// the shape of [USERLO,USERHI) once taken, so MERGE needs no separate
/// range validation beyond the destination's bounds — but it does need
/// to know a baseline exists at all.
func (as *AS_t) Snapshotted() bool {
	return as.Rpdir != nil
}

/// Snapshot copies the full user range from Pdir into Rpdir,
/// establishing a fresh merge baseline — PUT's SNAP step (spec.md
/// §4.4.7).
func (as *AS_t) Snapshot() {
	as.Lockassert_pmap()
	fresh := make(mem.Pmap_t)
	mem.Copy(mem.Physmem, as.Pdir, mem.USERLO, fresh, mem.USERLO, int(mem.USERHI-mem.USERLO))
	if as.Rpdir != nil {
		mem.Remove(mem.Physmem, as.Rpdir, mem.USERLO, int(mem.USERHI-mem.USERLO))
	}
	as.Rpdir = fresh
}
