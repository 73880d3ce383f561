package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	timers := NewTimers()
	defer timers.Close()

	done := make(chan struct{})
	timers.After("x", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if timers.Pending("x") {
		t.Error("fired timer must not stay pending")
	}
}

func TestAfterReplacesSameName(t *testing.T) {
	timers := NewTimers()
	defer timers.Close()

	var first, second atomic.Int32
	timers.After("x", 10*time.Millisecond, func() { first.Add(1) })
	timers.After("x", 10*time.Millisecond, func() { second.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 {
		t.Error("replaced timer must not fire")
	}
	if second.Load() != 1 {
		t.Errorf("replacement fired %d times, want 1", second.Load())
	}
}

func TestCancel(t *testing.T) {
	timers := NewTimers()
	defer timers.Close()

	var fired atomic.Int32
	timers.After("x", 10*time.Millisecond, func() { fired.Add(1) })
	timers.Cancel("x")

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("cancelled timer must not fire")
	}
}

func TestCloseRejectsScheduling(t *testing.T) {
	timers := NewTimers()

	var fired atomic.Int32
	timers.After("x", 10*time.Millisecond, func() { fired.Add(1) })
	timers.Close()
	timers.After("y", time.Millisecond, func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("callbacks ran after Close: %d", fired.Load())
	}
}

func TestCancelAllKeepsSetUsable(t *testing.T) {
	timers := NewTimers()
	defer timers.Close()

	var stale atomic.Int32
	timers.After("a", 10*time.Millisecond, func() { stale.Add(1) })
	timers.After("b", 10*time.Millisecond, func() { stale.Add(1) })
	timers.CancelAll()

	done := make(chan struct{})
	timers.After("c", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("set unusable after CancelAll")
	}
	if stale.Load() != 0 {
		t.Error("cancelled timers fired")
	}
}
