package mem

import (
	"sync"
	"sync/atomic"

	"limits"
	"oommsg"
)

/// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET uintptr = uintptr(PGSIZE - 1)

/// PTSHIFT is the base-2 exponent of the page-table-alignment granule
/// COPY/ZERO/MERGE validate against, standing in for the teacher's
/// 4-level radix walk in a simulated single-level page map.
const PTSHIFT uint = PGSHIFT + 10

/// PTSIZE is the page-table-aligned granule, 1024 pages.
const PTSIZE int = 1 << PTSHIFT

/// Pa_t identifies one simulated physical page frame. The zero value
/// never denotes a live frame (frame indices are 1-based) so a Pa_t can
/// double as its own "no page" sentinel.
type Pa_t uint64

/// Pg_t is one physical page's backing storage.
type Pg_t [PGSIZE]uint8

/// Page_i abstracts physical page allocation for collaborators, such as
/// the console sink, that only need a single backing page and never
/// touch the page-map surgery API below.
type Page_i interface {
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

type physpg_t struct {
	refcnt int32
	nexti  uint32
	pg     Pg_t
}

/// Physmem_t is a software-simulated physical page-frame pool: a
/// slice-backed free list with atomic refcounting, adapted from the
/// teacher's Physmem_t with the unsafe direct-map and patched-runtime
/// allocation hooks (runtime.Get_phys, Vdirect) removed — a hosted
/// module has no bare-metal memory to map, so frames are ordinary Go
/// memory from the start.
type Physmem_t struct {
	sync.Mutex
	pgs     []physpg_t
	freei   uint32
	freelen int32
}

const nilnext = ^uint32(0)

/// Physmem is the global simulated physical memory allocator.
var Physmem = &Physmem_t{}

/// Phys_init reserves n simulated physical pages and readies the free
/// list. It must run before any Refpg_new_nozero call.
func Phys_init(n int) *Physmem_t {
	phys := Physmem
	phys.pgs = make([]physpg_t, n)
	for i := range phys.pgs {
		phys.pgs[i].refcnt = 0
		if i == len(phys.pgs)-1 {
			phys.pgs[i].nexti = nilnext
		} else {
			phys.pgs[i].nexti = uint32(i + 1)
		}
	}
	phys.freei = 0
	phys.freelen = int32(n)
	return phys
}

func (phys *Physmem_t) idx(p_pg Pa_t) uint32 {
	if p_pg == 0 {
		panic("mem: nil frame")
	}
	return uint32(p_pg - 1)
}

/// Refcnt returns the current reference count of a frame.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	return int(atomic.LoadInt32(&phys.pgs[phys.idx(p_pg)].refcnt))
}

/// Refup increments the reference count of a frame.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	c := atomic.AddInt32(&phys.pgs[phys.idx(p_pg)].refcnt, 1)
	if c <= 1 {
		panic("mem: refup of dead frame")
	}
}

/// Refdown decrements the reference count of a frame, returning the
/// frame to the free list and reporting true when it drops to zero.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	idx := phys.idx(p_pg)
	c := atomic.AddInt32(&phys.pgs[idx].refcnt, -1)
	if c < 0 {
		panic("mem: refdown below zero")
	}
	if c != 0 {
		return false
	}
	phys.Lock()
	phys.pgs[idx].nexti = phys.freei
	phys.freei = idx
	phys.freelen++
	phys.Unlock()
	limits.Syslimit.Pages.Give()
	return true
}

func (phys *Physmem_t) alloc() (Pa_t, bool) {
	phys.Lock()
	defer phys.Unlock()
	if phys.freei == nilnext {
		return 0, false
	}
	idx := phys.freei
	phys.freei = phys.pgs[idx].nexti
	phys.freelen--
	phys.pgs[idx].refcnt = 1
	return Pa_t(idx + 1), true
}

/// Refpg_new_nozero allocates an uninitialized frame, consuming one
/// unit of the system-wide page budget. It returns false, having
/// posted to oommsg, when either the budget or the free list is
/// exhausted.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	if !limits.Syslimit.Pages.Take() {
		oommsg.Notify("mem.pages", 1)
		return nil, 0, false
	}
	p_pg, ok := phys.alloc()
	if !ok {
		limits.Syslimit.Pages.Give()
		oommsg.Notify("mem.pages", 1)
		return nil, 0, false
	}
	return &phys.pgs[phys.idx(p_pg)].pg, p_pg, true
}

/// Bytes returns the backing storage for a live frame.
func (phys *Physmem_t) Bytes(p_pg Pa_t) []byte {
	pg := &phys.pgs[phys.idx(p_pg)].pg
	return pg[:]
}

func init() {
	Phys_init(1 << 16)
}
