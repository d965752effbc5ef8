package sysdispatch

import (
	"testing"

	"cpu"
	"mem"
	"proc"
	"trapframe"
)

type captureSink struct {
	got []string
}

func (s *captureSink) Write(str string) { s.got = append(s.got, str) }

func newRoot() *proc.Process {
	root := proc.Alloc(nil, 0)
	root.State = proc.STOP
	return root
}

func seedPage(root *proc.Process, va uintptr) {
	root.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, root.AS.Pdir, va, mem.PGSIZE, true)
	root.AS.Unlock_pmap()
}

func TestDecodeRoundTrip(t *testing.T) {
	cmd := uint32(PUT)<<28 | REGS | FPU | SNAP | START | uint32(MEMOP_MERGE)<<22 | PERM | RW
	got, ok := Decode(cmd)
	if !ok {
		t.Fatalf("expected a valid decode")
	}
	want := Command{Type: PUT, Regs: true, FPU: true, Snap: true, Start: true, Memop: MEMOP_MERGE, Perm: true, RW: true}
	if got != want {
		t.Fatalf("decode mismatch: got %+v want %+v", got, want)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, ok := Decode(0); ok {
		t.Fatalf("expected type 0 to decode as unknown")
	}
}

func TestCputsHello(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	seedPage(root, mem.USERLO)

	msg := "hello\nworld"
	buf := make([]byte, mem.PGSIZE)
	copy(buf, msg)
	root.AS.Usercopy(c, &trapframe.Trapframe{}, true, buf, mem.USERLO, mem.PGSIZE, nil)

	sink := &captureSink{}
	tf := &trapframe.Trapframe{Cmd: uint32(CPUTS) << 28, KPtr: uint32(mem.USERLO)}
	Dispatch(c, root, tf, sink)

	if len(sink.got) != 1 || sink.got[0] != msg {
		t.Fatalf("expected console to capture %q, got %v", msg, sink.got)
	}
	if tf.Trapno != 0 {
		t.Fatalf("unexpected trap: %d", tf.Trapno)
	}
}

func TestCputsBadPointerReflectsPageFault(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)

	tf := &trapframe.Trapframe{Cmd: uint32(CPUTS) << 28, KPtr: uint32(mem.USERHI - 4), EIP: 0x1000, ESP: 0x2000}
	Dispatch(c, root, tf, &captureSink{})

	if tf.Trapno == 0 {
		t.Fatalf("expected a reflected page fault")
	}
	if tf.EIP != 0x1000 || tf.ESP != 0x2000 {
		t.Fatalf("reflection must preserve eip/esp for the parent to see the fault at the INT")
	}
}

func TestPutSpawnsChildAndStarts(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	seedPage(root, mem.USERLO)

	cmd := uint32(PUT)<<28 | START | uint32(MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{
		Cmd: cmd, ChildIdx: 7,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	Dispatch(c, root, tf, &captureSink{})

	child := root.Children[7]
	if child == nil {
		t.Fatalf("expected PUT to auto-allocate the child slot")
	}
	if child.State != proc.READY {
		t.Fatalf("expected START to ready the child, got %s", child.State)
	}
	if child.AS.Pdir[mem.USERLO] != root.AS.Pdir[mem.USERLO] {
		t.Fatalf("expected COPY to share-map the parent's page into the child")
	}
}

func TestUnalignedCopyRejected(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)

	cmd := uint32(PUT)<<28 | uint32(MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: 9, Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: 1}
	Dispatch(c, root, tf, &captureSink{})

	if tf.Trapno == 0 {
		t.Fatalf("expected an unaligned COPY to reflect a general-protection fault")
	}
}

func TestSnapOnGetRejected(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	proc.Alloc(root, 7)
	root.Children[7].State = proc.STOP

	cmd := uint32(GET)<<28 | SNAP
	tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: 7}
	Dispatch(c, root, tf, &captureSink{})

	if tf.Trapno == 0 {
		t.Fatalf("expected SNAP on GET to reflect a general-protection fault")
	}
}

func TestMergeWithoutSnapshotRejected(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	sink := &captureSink{}
	seedPage(root, mem.USERLO)

	spawnCmd := uint32(PUT)<<28 | uint32(MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{
		Cmd: spawnCmd, ChildIdx: 5,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	Dispatch(c, root, tf, sink)
	child := root.Children[5]
	if child.AS.Snapshotted() {
		t.Fatalf("child must not be snapshotted before any SNAP")
	}

	getCmd := uint32(GET)<<28 | uint32(MEMOP_MERGE)<<22
	tf2 := &trapframe.Trapframe{
		Cmd: getCmd, ChildIdx: 5,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	Dispatch(c, root, tf2, sink)

	if tf2.Trapno == 0 {
		t.Fatalf("expected MERGE before any SNAP to reflect a general-protection fault")
	}
}

// TestCputsFaultStopsProcessAndWakesParent exercises the fault-path fix:
// a failed Userstr must call self.Reflect (which calls proc.Ret), not
// just stamp tf.Trapno, or a parent parked in proc.Wait would block
// forever.
func TestCputsFaultStopsProcessAndWakesParent(t *testing.T) {
	root := newRoot()
	child := proc.Alloc(root, 2)
	child.State = proc.RUN
	c := cpu.New(0)

	woke := make(chan struct{})
	go func() {
		root.Lock()
		proc.Wait(root, child, &trapframe.Trapframe{})
		root.Unlock()
		close(woke)
	}()

	for {
		root.Lock()
		s := root.State
		root.Unlock()
		if s == proc.WAIT {
			break
		}
	}

	tf := &trapframe.Trapframe{Cmd: uint32(CPUTS) << 28, KPtr: uint32(mem.USERHI - 4)}
	Dispatch(c, child, tf, &captureSink{})

	<-woke
	if child.State != proc.STOP {
		t.Fatalf("expected the faulting process to stop, got %s", child.State)
	}
}

func TestSnapThenMergeAppliesOnlyDivergence(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	sink := &captureSink{}
	seedPage(root, mem.USERLO)

	spawnCmd := uint32(PUT)<<28 | uint32(MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{
		Cmd: spawnCmd, ChildIdx: 3,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	Dispatch(c, root, tf, sink)
	child := root.Children[3]

	snapCmd := uint32(PUT)<<28 | SNAP
	tf2 := &trapframe.Trapframe{Cmd: snapCmd, ChildIdx: 3}
	Dispatch(c, root, tf2, sink)
	if !child.AS.Snapshotted() {
		t.Fatalf("expected SNAP to populate Rpdir")
	}

	// Diverge the child at a second page, leave the first page as it was
	// in the snapshot — MERGE must carry over only the diverged page.
	divergeVA := mem.USERLO + uintptr(mem.PGSIZE)
	child.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, child.AS.Pdir, divergeVA, mem.PGSIZE, true)
	child.AS.Unlock_pmap()

	getCmd := uint32(GET)<<28 | uint32(MEMOP_MERGE)<<22
	tf3 := &trapframe.Trapframe{
		Cmd: getCmd, ChildIdx: 3,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	Dispatch(c, root, tf3, sink)
	if tf3.Trapno != 0 {
		t.Fatalf("unexpected trap during merge: %d", tf3.Trapno)
	}

	if _, ok := root.AS.Pdir[divergeVA]; !ok {
		t.Fatalf("expected the diverged page to be merged into the parent")
	}
}

func TestRegsRoundTrip(t *testing.T) {
	root := newRoot()
	c := cpu.New(0)
	sink := &captureSink{}
	seedPage(root, mem.USERLO)

	spawnCmd := uint32(PUT)<<28 | REGS
	tf := &trapframe.Trapframe{Cmd: spawnCmd, ChildIdx: 4, KPtr: uint32(mem.USERLO)}
	srcRegs := trapframe.Trapframe{EIP: 0x4000, ESP: 0x5000, Eflags: 0x202}
	buf := encodeSaveArea(&proc.SaveArea_t{TF: srcRegs}, false)
	root.AS.Usercopy(c, &trapframe.Trapframe{}, true, buf, mem.USERLO, len(buf), nil)
	Dispatch(c, root, tf, sink)

	child := root.Children[4]
	if child.SaveArea.TF.EIP != 0x4000 || child.SaveArea.TF.ESP != 0x5000 {
		t.Fatalf("expected register save area to round-trip, got %+v", child.SaveArea.TF)
	}
	// ForceUser must have rewritten segment selectors/eflags regardless
	// of what the parent supplied.
	if child.SaveArea.TF.CS != trapframe.SEL_UCODE {
		t.Fatalf("expected ForceUser to set the user code selector")
	}
}
