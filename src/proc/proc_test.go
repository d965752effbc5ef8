package proc

import (
	"testing"
)

func TestAllocChildIdentityStable(t *testing.T) {
	parent := newProcess(nil, 999001)
	c1 := Alloc(parent, 3)
	if parent.Children[3] != c1 {
		t.Fatalf("child not installed at requested slot")
	}
	// Re-resolving the same slot without reallocating must return the
	// same *Process — spec.md's child-identity-stability property.
	if parent.Children[3] != c1 {
		t.Fatalf("child identity changed across re-resolution")
	}
}

func TestAllocFullChildTable(t *testing.T) {
	parent := newProcess(nil, 999002)
	for i := 0; i < 256; i++ {
		Alloc(parent, uint32(i))
	}
	for i := 0; i < 256; i++ {
		if parent.Children[i] == nil {
			t.Fatalf("slot %d not populated", i)
		}
	}
}

func TestAllocNilParentIsRoot(t *testing.T) {
	root := Alloc(nil, 0)
	if root.Parent != nil {
		t.Fatalf("expected nil parent")
	}
	if root.State != STOP {
		t.Fatalf("fresh process must start STOP, got %s", root.State)
	}
}

func TestNullNeverBlocks(t *testing.T) {
	if Null.State != STOP {
		t.Fatalf("Null must always read STOP")
	}
	if Null.Parent != nil {
		t.Fatalf("Null must have no parent")
	}
}

func TestLockAssertUnlocked(t *testing.T) {
	p := newProcess(nil, 999003)
	p.AssertUnlocked() // should not panic

	p.Lock()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected AssertUnlocked to panic while locked")
		}
		p.Unlock()
	}()
	p.AssertUnlocked()
}

func TestCreditUserWaitNoopBeforeScheduled(t *testing.T) {
	p := newProcess(nil, 999006)
	p.CreditUserWait()
	if p.Userns != 0 {
		t.Fatalf("expected no user time credited before any MarkScheduled call")
	}
}

func TestCreditUserWaitAddsUserTime(t *testing.T) {
	p := newProcess(nil, 999007)
	p.MarkScheduled()
	p.CreditUserWait()
	if p.Userns < 0 {
		t.Fatalf("expected a non-negative user-time credit, got %d", p.Userns)
	}
}

func TestRendezvousWaitWakesOnStop(t *testing.T) {
	parent := newProcess(nil, 999004)
	child := Alloc(parent, 5)
	child.State = RUN // anything other than STOP

	woke := make(chan struct{})
	go func() {
		parent.Lock()
		Wait(parent, child, &child.SaveArea.TF)
		parent.Unlock()
		close(woke)
	}()

	// Poll until the waiter is parked in WAIT, then wake it. Polling
	// state under parent's own lock avoids assuming any particular
	// goroutine-scheduling order.
	for {
		parent.Lock()
		s := parent.State
		parent.Unlock()
		if s == WAIT {
			break
		}
	}

	child.Lock()
	child.State = STOP
	child.Unlock()

	parent.Lock()
	parent.cond.Broadcast()
	parent.Unlock()

	<-woke
	parent.Lock()
	defer parent.Unlock()
	if parent.State != RUN {
		t.Fatalf("parent must resume RUN after rendezvous, got %s", parent.State)
	}
}

func TestRetStopsAndWakesParent(t *testing.T) {
	parent := newProcess(nil, 999005)
	child := Alloc(parent, 6)
	child.State = RUN

	done := make(chan struct{})
	go func() {
		parent.Lock()
		parent.State = WAIT
		for child.State != STOP {
			parent.cond.Wait()
		}
		parent.State = RUN
		parent.Unlock()
		close(done)
	}()

	// Wait for the waiter to actually park before triggering Ret, which
	// broadcasts on parent.cond.
	for {
		parent.Lock()
		s := parent.State
		parent.Unlock()
		if s == WAIT {
			break
		}
	}

	Ret(child, &child.SaveArea.TF, false)

	<-done
	if child.State != STOP {
		t.Fatalf("child must be STOP after Ret, got %s", child.State)
	}
	if child.RunCPU != nil {
		t.Fatalf("child.RunCPU must be cleared on stop")
	}
}
