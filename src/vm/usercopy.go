package vm

import (
	"cpu"
	"defs"
	"mem"
	"trapframe"
)

/// CPUTS_MAX bounds how many bytes CPUTS will ever pull from a user
/// pointer before giving up on finding a NUL.
const CPUTS_MAX = 1024

/// Usercopy moves size bytes between kbuf and the user virtual address
/// uva in as, in the direction out selects (true: kernel->user, false:
/// user->kernel). It installs a recovery scope on c before touching
/// user memory and clears it on every exit path; on an out-of-range
/// address or an unmapped page encountered mid-copy it reflects a
/// page-fault trap into tf and returns false, meaning the syscall must
/// not proceed further. No lock may be held across this call — callers
/// release the parent's lock before ever reaching here (spec.md §5).
/// assertUnlocked, when non-nil, is invoked at entry to enforce that;
/// sysdispatch passes the owning process's AssertUnlocked, callers
/// seeding memory outside a dispatch cycle (no lock in scope at all)
/// pass nil.
func (as *AS_t) Usercopy(c *cpu.CPU, tf *trapframe.Trapframe, out bool, kbuf []byte, uva uintptr, size int, assertUnlocked func()) bool {
	if assertUnlocked != nil {
		assertUnlocked()
	}
	if len(kbuf) < size {
		panic("vm: usercopy: short kernel buffer")
	}
	if !mem.InUserRange(uva, size) {
		tf.Reflect(defs.T_PGFLT, 0)
		return false
	}
	if !c.Idle() {
		panic("vm: usercopy: recovery scope already installed")
	}

	ok := true
	c.Install(func(trapno, err int) {
		tf.Reflect(uint32(trapno), uint32(err))
		ok = false
	})
	defer c.Clear()

	as.Lock_pmap()
	defer as.Unlock_pmap()

	off := 0
	for off < size {
		dst, _, mapped := mem.Translate(mem.Physmem, as.Pdir, uva+uintptr(off))
		if !mapped {
			f, active := c.Active()
			if !active {
				panic("vm: usercopy: recovery scope missing mid-copy")
			}
			f(defs.T_PGFLT, 0)
			return false
		}
		n := len(dst)
		if n > size-off {
			n = size - off
		}
		if out {
			copy(dst[:n], kbuf[off:off+n])
		} else {
			copy(kbuf[off:off+n], dst[:n])
		}
		off += n
	}
	return ok
}

/// Userstr reads at most max bytes from the user pointer uva and
/// returns the portion up to (not including) the first NUL byte. It
/// reports false, having already reflected a fault into tf, if the
/// underlying Usercopy failed.
func (as *AS_t) Userstr(c *cpu.CPU, tf *trapframe.Trapframe, uva uintptr, max int, assertUnlocked func()) ([]byte, bool) {
	buf := make([]byte, max)
	if !as.Usercopy(c, tf, false, buf, uva, max, assertUnlocked) {
		return nil, false
	}
	for i, b := range buf {
		if b == 0 {
			return buf[:i], true
		}
	}
	return buf, true
}
