package cpu

import "testing"

func TestFreshCPUIsIdle(t *testing.T) {
	c := New(0)
	if !c.Idle() {
		t.Fatalf("a fresh CPU must carry no recovery scope")
	}
	if f, ok := c.Active(); ok || f != nil {
		t.Fatalf("expected no active handler on a fresh CPU")
	}
}

func TestInstallThenClearRoundTrips(t *testing.T) {
	c := New(0)
	called := false
	c.Install(func(trapno, err int) { called = true })

	if c.Idle() {
		t.Fatalf("expected Idle to report false once a handler is installed")
	}
	f, ok := c.Active()
	if !ok {
		t.Fatalf("expected an active handler")
	}
	f(1, 2)
	if !called {
		t.Fatalf("expected the installed handler to run")
	}

	c.Clear()
	if !c.Idle() {
		t.Fatalf("expected Idle to report true after Clear")
	}
}

func TestClearIsSafeWhenNothingInstalled(t *testing.T) {
	c := New(0)
	c.Clear()
	c.Clear()
	if !c.Idle() {
		t.Fatalf("double-clear on an idle CPU must remain idle")
	}
}

func TestInstallPanicsWhenAlreadyInstalled(t *testing.T) {
	c := New(0)
	c.Install(func(trapno, err int) {})

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected nested Install to panic")
		}
	}()
	c.Install(func(trapno, err int) {})
}

func TestInstallAfterClearSucceedsAgain(t *testing.T) {
	c := New(0)
	c.Install(func(trapno, err int) {})
	c.Clear()
	// A fresh scope must be installable once the previous one cleared —
	// strict nesting bars concurrent scopes, not sequential reuse.
	c.Install(func(trapno, err int) {})
	if c.Idle() {
		t.Fatalf("expected the second Install to take effect")
	}
}
