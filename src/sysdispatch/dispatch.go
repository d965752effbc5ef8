package sysdispatch

import (
	"bytes"
	"encoding/binary"

	"console"
	"cpu"
	"defs"
	"mem"
	"proc"
	"trapframe"
	"vm"
)

/// Dispatch decodes tf's command word and routes it to the matching
/// handler. An unknown type is a silent no-op, left for the outer trap
/// dispatcher to treat as an ordinary fault.
func Dispatch(c *cpu.CPU, self *proc.Process, tf *trapframe.Trapframe, sink console.Sink) {
	entry := self.Now()
	defer self.Finish(entry)

	cmd, ok := Decode(tf.Cmd)
	if !ok {
		return
	}
	switch cmd.Type {
	case CPUTS:
		doCputs(c, self, tf, sink)
	case PUT:
		doPut(c, self, tf, cmd)
	case GET:
		doGet(c, self, tf, cmd)
	case RET:
		proc.Ret(self, tf, true)
	}
}

func doCputs(c *cpu.CPU, self *proc.Process, tf *trapframe.Trapframe, sink console.Sink) {
	s, ok := self.AS.Userstr(c, tf, uintptr(tf.KPtr), vm.CPUTS_MAX, self.AssertUnlocked)
	if !ok {
		self.Reflect(tf, tf.Trapno, tf.Err)
		return
	}
	sink.Write(string(s))
	self.Stats.Cputs.Inc()
	proc.Ret(self, tf, true)
}

func regsLen(fpu bool) int {
	n := binary.Size(trapframe.Trapframe{})
	if fpu {
		n += binary.Size([512]byte{})
	}
	return n
}

func encodeSaveArea(sa *proc.SaveArea_t, fpu bool) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, sa.TF)
	if fpu {
		binary.Write(buf, binary.LittleEndian, sa.FPU)
	}
	return buf.Bytes()
}

func decodeSaveArea(data []byte, sa *proc.SaveArea_t, fpu bool) {
	r := bytes.NewReader(data)
	binary.Read(r, binary.LittleEndian, &sa.TF)
	if fpu {
		binary.Read(r, binary.LittleEndian, &sa.FPU)
	}
}

// doPut implements PUT (parent -> child), spec.md §4.4, ported from
// do_put in the original kernel's syscall.c.
func doPut(c *cpu.CPU, self *proc.Process, tf *trapframe.Trapframe, cmd Command) {
	self.Lock()
	idx := tf.ChildIdx & 0xff
	child := self.Children[idx]
	if child == nil {
		child = proc.Alloc(self, idx)
	}
	if child.State != proc.STOP {
		proc.Wait(self, child, tf)
	}
	self.Unlock()

	if cmd.Regs {
		n := regsLen(cmd.FPU)
		buf := make([]byte, n)
		if !self.AS.Usercopy(c, tf, false, buf, uintptr(tf.KPtr), n, self.AssertUnlocked) {
			self.Reflect(tf, tf.Trapno, tf.Err)
			return
		}
		decodeSaveArea(buf, &child.SaveArea, cmd.FPU)
		child.SaveArea.TF.ForceUser()
	}

	sva, dva, size := uintptr(tf.Src), uintptr(tf.Dst), int(tf.Size)
	switch cmd.Memop {
	case MEMOP_NONE:
	case MEMOP_COPY:
		if !mem.PTAligned(sva, size) || !mem.PTAligned(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		mem.Copy(mem.Physmem, self.AS.Pdir, sva, child.AS.Pdir, dva, size)
	case MEMOP_ZERO:
		if !mem.PTAligned(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		mem.Remove(mem.Physmem, child.AS.Pdir, dva, size)
	default:
		self.Reflect(tf, defs.T_GPFLT, 0)
		return
	}

	if cmd.Perm {
		if !mem.PgAligned(dva, size) || !mem.InUserRange(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		child.AS.Lock_pmap()
		ok := mem.Setperm(mem.Physmem, child.AS.Pdir, dva, size, cmd.RW)
		child.AS.Unlock_pmap()
		if !ok {
			panic("sysdispatch: no memory to set permissions")
		}
	}

	if cmd.Snap {
		child.AS.Lock_pmap()
		child.AS.Snapshot()
		child.AS.Unlock_pmap()
	}

	if cmd.Start {
		proc.Ready(child)
	}

	self.Stats.Puts.Inc()
	proc.Ret(self, tf, true)
}

// doGet implements GET (child -> parent), spec.md §4.5, ported from
// do_get in the original kernel's syscall.c.
func doGet(c *cpu.CPU, self *proc.Process, tf *trapframe.Trapframe, cmd Command) {
	self.Lock()
	idx := tf.ChildIdx & 0xff
	child := self.Children[idx]
	if child == nil {
		child = proc.Null
	}
	if child.State != proc.STOP {
		proc.Wait(self, child, tf)
	}
	self.Unlock()

	if cmd.Regs {
		n := regsLen(cmd.FPU)
		buf := encodeSaveArea(&child.SaveArea, cmd.FPU)
		if !self.AS.Usercopy(c, tf, true, buf, uintptr(tf.KPtr), n, self.AssertUnlocked) {
			self.Reflect(tf, tf.Trapno, tf.Err)
			return
		}
	}

	sva, dva, size := uintptr(tf.Src), uintptr(tf.Dst), int(tf.Size)
	switch cmd.Memop {
	case MEMOP_NONE:
	case MEMOP_COPY:
		if !mem.PTAligned(sva, size) || !mem.PTAligned(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		mem.Copy(mem.Physmem, child.AS.Pdir, sva, self.AS.Pdir, dva, size)
	case MEMOP_ZERO:
		if !mem.PTAligned(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		mem.Remove(mem.Physmem, self.AS.Pdir, dva, size)
	case MEMOP_MERGE:
		if !mem.PTAligned(sva, size) || !mem.PTAligned(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		if !child.AS.Snapshotted() {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		self.AS.Lock_pmap()
		mem.Merge(mem.Physmem, child.AS.Rpdir, child.AS.Pdir, sva, self.AS.Pdir, dva, size)
		self.AS.Unlock_pmap()
	default:
		self.Reflect(tf, defs.T_GPFLT, 0)
		return
	}

	if cmd.Perm {
		if !mem.PgAligned(dva, size) || !mem.InUserRange(dva, size) {
			self.Reflect(tf, defs.T_GPFLT, 0)
			return
		}
		self.AS.Lock_pmap()
		ok := mem.Setperm(mem.Physmem, self.AS.Pdir, dva, size, cmd.RW)
		self.AS.Unlock_pmap()
		if !ok {
			panic("sysdispatch: no memory to set permissions")
		}
	}

	if cmd.Snap {
		// SNAP is only valid for PUT.
		self.Reflect(tf, defs.T_GPFLT, 0)
		return
	}

	self.Stats.Gets.Inc()
	proc.Ret(self, tf, true)
}
