// Package proc holds the process object and table this kernel core
// dispatches syscalls against: process state, register save-area,
// child table, and the parent/child rendezvous transitions.
package proc

import (
	"sync"
	"sync/atomic"

	"accnt"
	"caller"
	"cpu"
	"klog"
	"stats"
	"trapframe"
	"vm"
)

/// State is one of a process's four lifecycle states (spec.md §3).
type State int

const (
	STOP State = iota
	READY
	RUN
	WAIT
)

func (s State) String() string {
	switch s {
	case STOP:
		return "STOP"
	case READY:
		return "READY"
	case RUN:
		return "RUN"
	case WAIT:
		return "WAIT"
	default:
		return "?"
	}
}

/// SaveArea_t is a process's register save-area: the trapframe plus an
/// opaque FPU extended-state block. PUT/GET's FPU bit controls whether
/// the FPU block is included in a register transfer.
type SaveArea_t struct {
	TF  trapframe.Trapframe
	FPU [512]byte
}

/// ProcStats counts per-process dispatch activity, dumped on demand via
/// stats.Stats2String.
type ProcStats struct {
	Puts   stats.Counter_t
	Gets   stats.Counter_t
	Rets   stats.Counter_t
	Cputs  stats.Counter_t
	Faults stats.Counter_t
	Run    stats.Cycles_t
}

var log = klog.For("proc")

/// distinctFault records the first occurrence of each distinct
/// fault-reflection call path, the use caller.Distinct_caller_t
/// documents for itself: a poor man's once-per-ancestor-chain log.
var distinctFault = &caller.Distinct_caller_t{Enabled: true}

/// Process is one entity in the process tree. Embeds accnt.Accnt_t
/// (kept unchanged from the teacher) for per-process CPU-time
/// accounting.
type Process struct {
	mu     sync.Mutex
	locked int32
	cond   *sync.Cond

	Pid      int
	State    State
	SaveArea SaveArea_t
	AS       *vm.AS_t
	Children [256]*Process
	Parent   *Process
	RunCPU   *cpu.CPU

	accnt.Accnt_t
	Stats    ProcStats
	queuedAt int64
}

/// Lock acquires the process's lock and marks it held, so
/// AssertUnlocked can catch a caller that still holds it when it
/// reaches vm.Usercopy.
func (p *Process) Lock() {
	p.mu.Lock()
	atomic.StoreInt32(&p.locked, 1)
}

/// Unlock releases the process's lock.
func (p *Process) Unlock() {
	atomic.StoreInt32(&p.locked, 0)
	p.mu.Unlock()
}

/// AssertUnlocked panics if this process's lock is currently held —
/// the enforcement spec.md §4.1 requires for "no lock held across
/// usercopy".
func (p *Process) AssertUnlocked() {
	if atomic.LoadInt32(&p.locked) != 0 {
		panic("proc: lock held across usercopy")
	}
}

/// MarkScheduled stamps the moment a process is queued for a dispatch
/// cycle. The scheduler calls this when it enqueues a process;
/// CreditUserWait later folds the interval since this call into the
/// process's user-time counter, crediting the run-queue wait the same
/// way a process's time outside the kernel is accounted.
func (p *Process) MarkScheduled() {
	atomic.StoreInt64(&p.queuedAt, int64(p.Now()))
}

/// CreditUserWait adds the time since the last MarkScheduled call to
/// the user-time counter. It is a no-op the first time a process runs,
/// before any MarkScheduled call has ever been made.
func (p *Process) CreditUserWait() {
	at := atomic.LoadInt64(&p.queuedAt)
	if at == 0 {
		return
	}
	p.Utadd(p.Now() - int(at))
}

func newProcess(parent *Process, pid int) *Process {
	p := &Process{
		Pid:    pid,
		State:  STOP,
		AS:     vm.NewAS(),
		Parent: parent,
	}
	p.cond = sync.NewCond(p)
	return p
}

/// Reflect overwrites tf's trap number/error as if self's INT
/// instruction had raised them, then hands control to self's parent —
/// spec.md §4.6's trap reflection, expressed as proc_ret(tf, false) in
/// the teacher's terms.
func (p *Process) Reflect(tf *trapframe.Trapframe, trapno, err uint32) {
	tf.Reflect(trapno, err)
	p.Stats.Faults.Inc()
	if fresh, trace := distinctFault.Distinct(); fresh {
		log.Warn("reflecting fault", "pid", p.Pid, "trapno", trapno, "err", err, "path", trace)
	}
	Ret(p, tf, false)
}
