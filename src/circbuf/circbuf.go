// Package circbuf implements a byte-oriented circular buffer backed by a
// single simulated physical page. The console collaborator (package
// console) uses one to stage bytes written by CPUTS before they reach the
// logger, so that printing never blocks on a slow sink.
package circbuf

import "defs"
import "mem"

/// Circbuf_t is a simple circular buffer. It is not safe for concurrent
/// use and references no global variables.
type Circbuf_t struct {
	phys  mem.Page_i /// page allocator backing the buffer
	Buf   []uint8    /// backing memory
	bufsz int        /// capacity in bytes
	head  int        /// write position
	tail  int        /// read position
	p_pg  mem.Pa_t   /// physical page backing the buffer
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int {
	return cb.bufsz
}

/// Cb_init records the desired size and allocator; the backing page is
/// allocated lazily on first use so construction never fails.
func (cb *Circbuf_t) Cb_init(sz int, phys mem.Page_i) {
	if sz <= 0 || sz > mem.PGSIZE {
		panic("bad circbuf size")
	}
	cb.phys = phys
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
}

/// Cb_ensure guarantees the backing page is allocated, returning ENOMEM
/// if the physical allocator is exhausted.
func (cb *Circbuf_t) Cb_ensure() defs.Err_t {
	if cb.Buf != nil {
		return 0
	}
	if cb.bufsz == 0 {
		panic("not initted")
	}
	pg, p_pg, ok := cb.phys.Refpg_new_nozero()
	if !ok {
		return defs.ENOMEM
	}
	cb.p_pg = p_pg
	cb.Buf = pg[:cb.bufsz]
	return 0
}

/// Cb_release drops the reference to the backing page.
func (cb *Circbuf_t) Cb_release() {
	if cb.Buf == nil {
		return
	}
	cb.phys.Refdown(cb.p_pg)
	cb.p_pg = 0
	cb.Buf = nil
	cb.head, cb.tail = 0, 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool {
	return cb.head-cb.tail == cb.bufsz
}

/// Empty reports whether the buffer contains no data.
func (cb *Circbuf_t) Empty() bool {
	return cb.head == cb.tail
}

/// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int {
	return cb.bufsz - (cb.head - cb.tail)
}

/// Used returns the current number of bytes in the buffer.
func (cb *Circbuf_t) Used() int {
	return cb.head - cb.tail
}

/// Write copies as much of src into the buffer as fits and returns the
/// count copied.
func (cb *Circbuf_t) Write(src []uint8) (int, defs.Err_t) {
	if err := cb.Cb_ensure(); err != 0 {
		return 0, err
	}
	n := 0
	for n < len(src) && !cb.Full() {
		hi := cb.head % cb.bufsz
		cb.Buf[hi] = src[n]
		cb.head++
		n++
	}
	return n, 0
}

/// Read drains up to len(dst) bytes from the buffer into dst.
func (cb *Circbuf_t) Read(dst []uint8) int {
	if cb.Buf == nil {
		return 0
	}
	n := 0
	for n < len(dst) && !cb.Empty() {
		ti := cb.tail % cb.bufsz
		dst[n] = cb.Buf[ti]
		cb.tail++
		n++
	}
	return n
}
