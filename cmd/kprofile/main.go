// Command kprofile runs a dispatch stress pass against a single
// process's syscall dispatcher and writes the per-command-type timing
// breakdown as a pprof profile, so `go tool pprof` can render it the
// same as any other profile this kernel core's collaborators produce.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/pprof/profile"

	"console"
	"cpu"
	"mem"
	"proc"
	"sysdispatch"
	"trapframe"
)

func main() {
	var (
		iters = flag.Int("n", 10000, "dispatch iterations per command type")
		out   = flag.String("o", "kprofile.pb.gz", "output pprof profile path")
	)
	flag.Parse()

	root := proc.Alloc(nil, 0)
	root.State = proc.STOP
	c := cpu.New(0)
	sink := &discard{}

	root.AS.Lock_pmap()
	mem.Setperm(mem.Physmem, root.AS.Pdir, mem.USERLO, mem.PGSIZE, true)
	root.AS.Unlock_pmap()

	samples := []sample{
		{"cputs", runCputs(c, root, sink, *iters)},
		{"put", runPut(c, root, *iters)},
		{"get", runGet(c, root, *iters)},
	}

	p := buildProfile(samples)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kprofile:", err)
		os.Exit(1)
	}
	defer f.Close()
	if err := p.Write(f); err != nil {
		fmt.Fprintln(os.Stderr, "kprofile:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d samples\n", *out, len(samples))
}

type discard struct{}

func (*discard) Write(string) {}

type sample struct {
	name  string
	total time.Duration
}

func runCputs(c *cpu.CPU, root *proc.Process, sink console.Sink, n int) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		tf := &trapframe.Trapframe{Cmd: uint32(sysdispatch.CPUTS) << 28, KPtr: uint32(mem.USERLO)}
		sysdispatch.Dispatch(c, root, tf, sink)
	}
	return time.Since(start)
}

func runPut(c *cpu.CPU, root *proc.Process, n int) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		idx := uint32(1 + i%254)
		cmd := uint32(sysdispatch.PUT) << 28
		tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: idx}
		sysdispatch.Dispatch(c, root, tf, &discard{})
	}
	return time.Since(start)
}

func runGet(c *cpu.CPU, root *proc.Process, n int) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		idx := uint32(1 + i%254)
		cmd := uint32(sysdispatch.GET) << 28
		tf := &trapframe.Trapframe{Cmd: cmd, ChildIdx: idx}
		sysdispatch.Dispatch(c, root, tf, &discard{})
	}
	return time.Since(start)
}

func buildProfile(samples []sample) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "count", Unit: "count"},
			{Type: "time", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "dispatch", Unit: "count"},
		Period:     1,
	}

	funcs := make(map[string]*profile.Function)
	for i, s := range samples {
		fn := &profile.Function{ID: uint64(i + 1), Name: "sysdispatch." + s.name}
		funcs[s.name] = fn
		p.Function = append(p.Function, fn)

		loc := &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn, Line: 1}},
		}
		p.Location = append(p.Location, loc)

		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1, int64(s.total)},
			Label:    map[string][]string{"op": {s.name}},
		})
	}
	return p
}
