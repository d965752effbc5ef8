package proc

import "trapframe"

/// ReadyHook lets the scheduler package observe READY transitions
/// without proc importing sched — sched sets this during Boot. Its
/// initial value is a no-op function so tests can drive proc without a
/// scheduler at all.
var ReadyHook = func(*Process) {}

/// Wait blocks parent on child until child reaches STOP — the
/// rendezvous spec.md §4.7 names. The caller must already hold
/// parent's lock (mirroring the teacher's "acquire parent lock,
/// resolve child slot, wait if needed" sequence); Wait releases it for
/// the duration of the block via parent's condition variable and
/// reacquires it before returning, exactly as a classic sleep/wakeup
/// on the parent's own lock would. parent's trapframe is saved into
/// its own save-area first so that, from the parent's perspective,
/// being woken is indistinguishable from restarting the syscall from
/// the top.
func Wait(parent, child *Process, tf *trapframe.Trapframe) {
	parent.SaveArea.TF = *tf
	parent.State = WAIT
	for child.State != STOP {
		parent.cond.Wait()
	}
	parent.State = RUN
}

/// Ready marks child READY and lets the scheduler know it can be run.
func Ready(child *Process) {
	child.Lock()
	child.State = READY
	child.Unlock()
	ReadyHook(child)
}

/// Ret transitions self out of RUN to STOP and wakes self's parent if
/// it is waiting on self. advanceEip selects ordinary RET semantics
/// (true: resume past the syscall instruction) versus trap-reflection
/// semantics (false: resume exactly at the INT instruction, so the
/// parent observes the synthesized fault at the instruction that
/// supposedly caused it).
func Ret(self *Process, tf *trapframe.Trapframe, advanceEip bool) {
	if advanceEip {
		tf.EIP += 2
	}
	self.Lock()
	self.SaveArea.TF = *tf
	self.State = STOP
	self.RunCPU = nil
	self.Unlock()

	if self.Parent != nil {
		self.Parent.Lock()
		self.Parent.cond.Broadcast()
		self.Parent.Unlock()
	}
}
