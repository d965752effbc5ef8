// Command kmon is an interactive monitor that drives the syscall
// dispatcher through the real scheduler pool: it builds a root process
// and a handful of children by hand, submits command words into their
// trapframes, and prints what the dispatcher did. It exists to exercise
// the six end-to-end scenarios spec.md §8 names interactively, the way
// a teacher's bring-up kernel would be poked at from its own
// monitor/debug console before user-space exists.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"console"
	"cpu"
	"klog"
	"mem"
	"proc"
	"sched"
	"stats"
	"sysdispatch"
	"trapframe"
)

// job is a pending dispatch cycle submitted to the scheduler pool; run
// signals done once sysdispatch.Dispatch has returned.
type job struct {
	tf   *trapframe.Trapframe
	sink console.Sink
	done chan struct{}
}

var (
	jobsMu sync.Mutex
	jobs   = map[int]*job{}
)

// run is the sched.Run callback: it looks up the job queued for the
// process the pool just picked up and dispatches it.
func run(c *cpu.CPU, p *proc.Process) {
	jobsMu.Lock()
	j := jobs[p.Pid]
	delete(jobs, p.Pid)
	jobsMu.Unlock()
	if j == nil {
		return
	}
	sysdispatch.Dispatch(c, p, j.tf, j.sink)
	close(j.done)
}

// submit hands tf to the pool for p and blocks until the dispatch cycle
// it triggers completes.
func submit(pool *sched.Pool, p *proc.Process, tf *trapframe.Trapframe, sink console.Sink) {
	j := &job{tf: tf, sink: sink, done: make(chan struct{})}
	jobsMu.Lock()
	jobs[p.Pid] = j
	jobsMu.Unlock()

	p.Lock()
	p.State = proc.READY
	p.Unlock()
	pool.Enqueue(p)
	<-j.done
}

func main() {
	klog.LevelVar.Set(klog.Info)

	sink := console.NewDefault()
	root := newRootProcess()
	monitor := cpu.New(-1)
	pool := sched.Boot(1, run)
	defer pool.Stop()

	fmt.Println("kmon: interactive syscall-dispatch monitor")
	fmt.Println("type 'help' for scenarios, 'quit' to exit")

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("(stdin is a terminal)")
	}

	sc := bufio.NewScanner(os.Stdin)
	fmt.Print("kmon> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
		case "help":
			printHelp()
		case "quit", "exit":
			return
		case "stats":
			fmt.Print(stats.Stats2String(&root.Stats))
		default:
			runScenario(line, pool, monitor, root, sink)
		}
		fmt.Print("kmon> ")
	}
}

func newRootProcess() *proc.Process {
	root := proc.Alloc(nil, 0)
	root.State = proc.STOP
	return root
}

func printHelp() {
	fmt.Println(`scenarios:
  hello     - CPUTS "hello\nworld" to the console
  badptr    - CPUTS with an out-of-range pointer; expect a reflected page fault
  spawn     - PUT(REGS|COPY|START) a fresh child
  snapmerge - SNAP a child, diverge both sides, then GET(MERGE)
  snaponget - GET with SNAP set; expect a reflected general-protection fault
  unaligned - PUT(COPY) with size=1; expect a reflected general-protection fault
  stats     - print root process dispatch counters
  quit      - exit`)
}

func runScenario(name string, pool *sched.Pool, monitor *cpu.CPU, root *proc.Process, sink console.Sink) {
	switch name {
	case "hello":
		scenarioHello(pool, monitor, root, sink)
	case "badptr":
		scenarioBadPtr(pool, root)
	case "spawn":
		scenarioSpawn(pool, root, sink)
	case "snapmerge":
		scenarioSnapMerge(pool, root, sink)
	case "snaponget":
		scenarioSnapOnGet(pool, root)
	case "unaligned":
		scenarioUnaligned(pool, root)
	default:
		fmt.Printf("unknown scenario %q; type 'help'\n", name)
	}
}

// putString seeds a page of root's address space with a NUL-terminated
// string, using the monitor's own pseudo-CPU directly rather than going
// through the scheduler — the monitor plays the role of the bootstrap
// code that populates a process before it ever takes a trap.
func putString(monitor *cpu.CPU, p *proc.Process, s string) uintptr {
	p.AS.Lock_pmap()
	va := mem.USERLO
	mem.Setperm(mem.Physmem, p.AS.Pdir, va, mem.PGSIZE, true)
	p.AS.Unlock_pmap()

	buf := make([]byte, mem.PGSIZE)
	copy(buf, s)
	p.AS.Usercopy(monitor, &trapframe.Trapframe{}, true, buf, va, mem.PGSIZE, nil)
	return va
}

func scenarioHello(pool *sched.Pool, monitor *cpu.CPU, root *proc.Process, sink console.Sink) {
	va := putString(monitor, root, "hello\nworld")
	tf := &trapframe.Trapframe{Cmd: uint32(sysdispatch.CPUTS) << 28, KPtr: uint32(va)}
	submit(pool, root, tf, sink)
	fmt.Printf("hello: trapno=%d err=%d eip=%#x\n", tf.Trapno, tf.Err, tf.EIP)
}

func scenarioBadPtr(pool *sched.Pool, root *proc.Process) {
	tf := &trapframe.Trapframe{Cmd: uint32(sysdispatch.CPUTS) << 28, KPtr: uint32(mem.USERHI - 4), EIP: 0x1000, ESP: 0x2000}
	submit(pool, root, tf, console.NewDefault())
	fmt.Printf("badptr: trapno=%d err=%d (expect page fault, eip/esp preserved: %#x/%#x)\n", tf.Trapno, tf.Err, tf.EIP, tf.ESP)
}

func scenarioSpawn(pool *sched.Pool, root *proc.Process, sink console.Sink) {
	root.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, root.AS.Pdir, mem.USERLO, mem.PTSIZE, true)
	root.AS.Unlock_pmap()

	cmd := uint32(sysdispatch.PUT)<<28 | sysdispatch.REGS | sysdispatch.START |
		uint32(sysdispatch.MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{
		Cmd: cmd, ChildIdx: 7,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	submit(pool, root, tf, sink)
	child := root.Children[7]
	fmt.Printf("spawn: child state=%s rpdir-snapshotted=%v\n", child.State, child.AS.Snapshotted())
}

func scenarioSnapMerge(pool *sched.Pool, root *proc.Process, sink console.Sink) {
	scenarioSpawn(pool, root, sink)
	child := root.Children[7]

	snapCmd := uint32(sysdispatch.PUT)<<28 | sysdispatch.SNAP
	tf := &trapframe.Trapframe{Cmd: snapCmd, ChildIdx: 7}
	submit(pool, root, tf, sink)

	child.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, child.AS.Pdir, mem.USERLO+0x2000, mem.PGSIZE, true)
	child.AS.Unlock_pmap()
	root.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, root.AS.Pdir, mem.USERLO, mem.PGSIZE, true)
	root.AS.Unlock_pmap()

	getCmd := uint32(sysdispatch.GET)<<28 | uint32(sysdispatch.MEMOP_MERGE)<<22
	tf2 := &trapframe.Trapframe{
		Cmd: getCmd, ChildIdx: 7,
		Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: uint32(mem.PTSIZE),
	}
	submit(pool, root, tf2, sink)
	fmt.Printf("snapmerge: trapno=%d err=%d\n", tf2.Trapno, tf2.Err)
}

func scenarioSnapOnGet(pool *sched.Pool, root *proc.Process) {
	cmd := uint32(sysdispatch.GET)<<28 | sysdispatch.SNAP
	tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: 7}
	submit(pool, root, tf, console.NewDefault())
	fmt.Printf("snaponget: trapno=%d err=%d (expect general-protection)\n", tf.Trapno, tf.Err)
}

func scenarioUnaligned(pool *sched.Pool, root *proc.Process) {
	cmd := uint32(sysdispatch.PUT)<<28 | uint32(sysdispatch.MEMOP_COPY)<<22
	tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: 9, Src: uint32(mem.USERLO), Dst: uint32(mem.USERLO), Size: 1}
	submit(pool, root, tf, console.NewDefault())
	fmt.Printf("unaligned: trapno=%d err=%d (expect general-protection)\n", tf.Trapno, tf.Err)
}
