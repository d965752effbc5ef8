package defs

// Err_t is the kernel's error code type. A zero value means success; all
// error values are negative, mirroring the C convention the rest of this
// codebase grew up with.
type Err_t int

// Error codes the dispatcher and its collaborators can return.
const (
	EFAULT   Err_t = -14 /// bad user address
	EINVAL   Err_t = -22 /// invalid argument
	ENOMEM   Err_t = -12 /// kernel out of memory
	ENOHEAP  Err_t = -48 /// per-operation heap budget exhausted
	ENAMETOOLONG Err_t = -36
)

// Tid_t names a schedulable entity (here, a process; the teacher's
// thread/process distinction collapses to one in this model).
type Tid_t int

// Hardware trap numbers the dispatcher can synthesize when reflecting a
// fault to the parent (§4.6). These mirror the x86 IDT vector numbers the
// original kernel's trap.h assigns.
const (
	T_PGFLT = 14 /// page fault
	T_GPFLT = 13 /// general protection fault
)
