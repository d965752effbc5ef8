// Package sched realizes spec.md §5's "preemptive, parallel across
// multiple CPUs" scheduling model as a small worker pool: Boot(n)
// starts n goroutines, each an independent simulated cpu.CPU pulling
// READY processes off a channel-based run queue. golang.org/x/sync's
// errgroup gives the pool structured start/stop and panic propagation,
// the same shape the teacher's own build depends on for coordinated
// goroutine lifetimes.
package sched

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cpu"
	"klog"
	"proc"
)

var log = klog.For("sched")

/// Run is invoked once per dispatch cycle for a process the scheduler
/// has pulled off the run queue. Callers of Boot supply this to wire
/// in sysdispatch.Dispatch without sched importing sysdispatch (sched
/// is a pure worker-pool harness; it knows nothing about syscalls).
type Run func(c *cpu.CPU, p *proc.Process)

/// Pool runs a fixed number of simulated CPUs pulling ready processes
/// off a shared run queue.
type Pool struct {
	runq   chan *proc.Process
	cancel context.CancelFunc
	g      *errgroup.Group
	run    Run
}

/// Boot starts a Pool of n simulated CPUs. run is called once per
/// scheduled process, on the CPU that picked it up; it must not block
/// beyond the single dispatch cycle it performs.
func Boot(n int, run Run) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		runq:   make(chan *proc.Process, 256),
		cancel: cancel,
		g:      g,
		run:    run,
	}

	proc.ReadyHook = func(pr *proc.Process) {
		pr.MarkScheduled()
		select {
		case p.runq <- pr:
		default:
			log.Warn("run queue full, dropping ready notification", "pid", pr.Pid)
		}
	}

	for i := 0; i < n; i++ {
		c := cpu.New(i)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case pr := <-p.runq:
					pr.CreditUserWait()
					pr.Lock()
					pr.RunCPU = c
					pr.State = proc.RUN
					pr.Unlock()
					p.run(c, pr)
				}
			}
		})
	}
	return p
}

/// Stop signals every CPU goroutine to exit and waits for them.
func (p *Pool) Stop() error {
	p.cancel()
	return p.g.Wait()
}

/// Enqueue submits a process for scheduling without going through
/// proc.Ready's READY-transition bookkeeping — used by cmd/kmon to
/// kick off a freshly-constructed root process.
func (p *Pool) Enqueue(pr *proc.Process) {
	pr.MarkScheduled()
	p.runq <- pr
}
