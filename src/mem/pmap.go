package mem

import (
	"limits"
	"oommsg"
)

// PTE_P, PTE_W, and PTE_U mirror the hardware page-table-entry bits the
// teacher's real x86 pmap carries; a simulated Pmap_t keeps the same
// vocabulary even though its "entries" are Go map values rather than
// bytes the MMU walks.
const (
	PTE_P PTE_t = 1 << 0
	PTE_W PTE_t = 1 << 1
	PTE_U PTE_t = 1 << 2
)

/// PTE_ADDR masks the frame-number bits of a PTE, i.e. everything above
/// the permission bits.
const PTE_ADDR PTE_t = ^PTE_t(1<<3 - 1)

/// PTE_t is one simulated page-table entry: a frame number shifted
/// above the low permission bits, exactly as a real x86 PTE packs them.
type PTE_t uint64

func mkpte(p_pg Pa_t, perm PTE_t) PTE_t {
	return PTE_t(p_pg)<<3 | (perm &^ PTE_ADDR)
}

func (pte PTE_t) frame() Pa_t {
	return Pa_t(pte >> 3)
}

// USERLO and USERHI bound the simulated user address space; the exact
// values are implementation-defined (spec.md §6 leaves bit positions
// and addresses to the implementer) but must stay page-table aligned.
const (
	USERLO uintptr = 0x40000000
	USERHI uintptr = 0xf0000000
)

/// Pmap_t is one address space's page map: page-aligned virtual
/// address to page-table entry. The teacher's real Pmap_t is a 4-level
/// radix tree of physical pages reached through a direct map; here it
/// is flattened to the map a from-scratch x86 walk would ultimately
/// resolve to, since no component in this module needs the
/// intermediate levels to observe page-map surgery's behavior.
type Pmap_t map[uintptr]PTE_t

/// pground rounds an address down to its containing page.
func pground(va uintptr) uintptr {
	return va &^ PGOFFSET
}

/// ptAligned reports whether va and size are both page-table-granule
/// aligned, the validation COPY/ZERO/MERGE require.
func ptAligned(va uintptr, size int) bool {
	return va&uintptr(PTSIZE-1) == 0 && size&(PTSIZE-1) == 0
}

/// PgAligned reports whether va and size are both page aligned, the
/// coarser validation PERM requires.
func PgAligned(va uintptr, size int) bool {
	return va&PGOFFSET == 0 && size&int(PGOFFSET) == 0
}

/// InUserRange reports whether [va, va+size) lies within
/// [USERLO, USERHI), computed so that a wrap-around size cannot slip
/// past the check (size >= USERHI-va is the wrap-safe form spec.md
/// §4.1 calls for). Because the test is strict, a range that ends
/// exactly at USERHI is rejected as well.
func InUserRange(va uintptr, size int) bool {
	if va < USERLO || va >= USERHI {
		return false
	}
	return uintptr(size) < USERHI-va
}

/// PTAligned reports whether va and size satisfy COPY/ZERO/MERGE's
/// combined page-table-alignment and user-range validation.
func PTAligned(va uintptr, size int) bool {
	return ptAligned(va, size) && InUserRange(va, size)
}

/// Copy share-maps size bytes of pages from src at sva into dst at dva,
/// bumping each shared frame's reference count — the copy-on-write-
/// friendly "copy" semantics spec.md §4.4 names (pmap_copy in the
/// teacher's original).
func Copy(phys *Physmem_t, src Pmap_t, sva uintptr, dst Pmap_t, dva uintptr, size int) {
	for off := 0; off < size; off += PGSIZE {
		spte, ok := src[sva+uintptr(off)]
		if !ok || spte&PTE_P == 0 {
			continue
		}
		dst[dva+uintptr(off)] = spte
		phys.Refup(spte.frame())
	}
}

/// Remove unmaps size bytes of pages at va in pmap, dropping each
/// mapped frame's reference and clearing permissions — the "zero and
/// unmap" semantics of MEMOP ZERO.
func Remove(phys *Physmem_t, pmap Pmap_t, va uintptr, size int) {
	for off := 0; off < size; off += PGSIZE {
		a := va + uintptr(off)
		pte, ok := pmap[a]
		if !ok {
			continue
		}
		delete(pmap, a)
		phys.Refdown(pte.frame())
	}
}

/// Merge performs a three-way merge of local (keyed at sva) against
/// base as the common ancestor, writing the result into dst at dva.
/// Pages local changed relative to base are copied into dst; pages
/// local left untouched are left as whatever dst already has, matching
/// pmap_merge's "apply only the child's divergence" semantics.
func Merge(phys *Physmem_t, base, local Pmap_t, sva uintptr, dst Pmap_t, dva uintptr, size int) {
	for off := 0; off < size; off += PGSIZE {
		s := sva + uintptr(off)
		d := dva + uintptr(off)
		lpte, lok := local[s]
		bpte, bok := base[s]

		diverged := lok != bok || (lok && bok && lpte.frame() != bpte.frame())
		if !diverged {
			continue
		}

		if old, ok := dst[d]; ok {
			phys.Refdown(old.frame())
			delete(dst, d)
		}
		if !lok {
			continue
		}
		dst[d] = lpte
		phys.Refup(lpte.frame())
	}
}

/// Translate resolves va to the backing bytes of its page, offset to
/// va's position within that page, along with the page's current PTE.
/// It is the primitive vm.Usercopy uses to move bytes in and out of a
/// process's address space.
func Translate(phys *Physmem_t, pmap Pmap_t, va uintptr) ([]byte, PTE_t, bool) {
	a := pground(va)
	pte, ok := pmap[a]
	if !ok || pte&PTE_P == 0 {
		return nil, 0, false
	}
	pg := phys.Bytes(pte.frame())
	return pg[va-a:], pte, true
}

/// Setperm sets or clears the writable bit over size bytes of pmap at
/// va, page by page, allocating a fresh zeroed frame for any page not
/// yet mapped. It returns false — the only non-panicking allocator
/// failure surface in this design — when the simulated page-table
/// budget or the physical pool is exhausted.
func Setperm(phys *Physmem_t, pmap Pmap_t, va uintptr, size int, rw bool) bool {
	for off := 0; off < size; off += PGSIZE {
		a := va + uintptr(off)
		pte, ok := pmap[a]
		if !ok {
			if !limits.Syslimit.Pmaps.Take() {
				oommsg.Notify("mem.pmaps", 1)
				return false
			}
			pg, p_pg, pok := phys.Refpg_new_nozero()
			if !pok {
				limits.Syslimit.Pmaps.Give()
				return false
			}
			*pg = Pg_t{}
			pte = mkpte(p_pg, PTE_P|PTE_U)
		}
		if rw {
			pte |= PTE_W
		} else {
			pte &^= PTE_W
		}
		pmap[a] = pte
	}
	return true
}
