package bridge

import (
	"sync"
	"testing"
	"time"
)

// recorder collects sent commands for assertions
type recorder struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *recorder) SendCommand(cmd Command) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
}

func (r *recorder) all() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

func TestDispatchRoutesByPaneAndKind(t *testing.T) {
	b := New(&recorder{})

	var got []Event
	unsub := b.Subscribe("pane-0", EventClick, func(ev Event) { got = append(got, ev) })

	b.Dispatch(Event{Pane: "pane-0", Kind: EventClick})
	b.Dispatch(Event{Pane: "pane-1", Kind: EventClick})
	b.Dispatch(Event{Pane: "pane-0", Kind: EventDragStart})

	if len(got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(got))
	}

	unsub()
	b.Dispatch(Event{Pane: "pane-0", Kind: EventClick})
	if len(got) != 1 {
		t.Error("event delivered after unsubscribe")
	}
}

func TestSubscriberCount(t *testing.T) {
	b := New(&recorder{})
	u1 := b.Subscribe("pane-0", EventClick, func(Event) {})
	u2 := b.Subscribe("pane-0", EventDragEnd, func(Event) {})
	b.Subscribe("pane-1", EventClick, func(Event) {})

	if n := b.SubscriberCount("pane-0"); n != 2 {
		t.Errorf("SubscriberCount = %d, want 2", n)
	}
	u1()
	u2()
	if n := b.SubscriberCount("pane-0"); n != 0 {
		t.Errorf("SubscriberCount after unsubscribe = %d, want 0", n)
	}
}

func TestRequestCompletion(t *testing.T) {
	rec := &recorder{}
	b := New(rec)

	p := b.Request(Command{Pane: "pane-0", Op: "pano-resolve"})
	cmds := rec.all()
	if len(cmds) != 1 || cmds[0].Seq == 0 {
		t.Fatalf("request must send one command with a sequence number, got %+v", cmds)
	}

	b.Dispatch(Event{
		Pane: "pane-0",
		Kind: EventRequestResult,
		Seq:  cmds[0].Seq,
		Payload: map[string]any{
			"status": StatusNotFound,
		},
	})

	select {
	case res := <-p.Done():
		if res.Status != StatusNotFound {
			t.Errorf("status = %s, want %s", res.Status, StatusNotFound)
		}
	case <-time.After(time.Second):
		t.Fatal("result never delivered")
	}
}

func TestRequestCancel(t *testing.T) {
	rec := &recorder{}
	b := New(rec)

	p := b.Request(Command{Pane: "pane-0", Op: "pano-resolve"})
	seq := rec.all()[0].Seq
	p.Cancel()

	select {
	case res := <-p.Done():
		if res.Status != StatusFailed {
			t.Errorf("cancelled status = %s, want %s", res.Status, StatusFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel never completed")
	}

	// A late completion for the abandoned request is dropped silently
	b.Dispatch(Event{Pane: "pane-0", Kind: EventRequestResult, Seq: seq, Payload: map[string]any{"status": StatusOK}})
}

func TestResolved(t *testing.T) {
	p := Resolved(Result{Status: StatusOK})
	select {
	case res := <-p.Done():
		if res.Status != StatusOK {
			t.Errorf("status = %s, want ok", res.Status)
		}
	default:
		t.Fatal("resolved pending must complete immediately")
	}
}

func TestReadinessRegistry(t *testing.T) {
	b := New(&recorder{})
	if b.SDKReady("atlas") {
		t.Error("SDK must start not-ready")
	}
	b.MarkSDKReady("atlas")
	if !b.SDKReady("atlas") {
		t.Error("SDK must be ready after MarkSDKReady")
	}

	if _, ok := b.ContainerFor("pane-0", "map"); ok {
		t.Error("container must start unknown")
	}
	b.MarkContainer("pane-0", "map", 800, 0)
	if c, _ := b.ContainerFor("pane-0", "map"); c.Usable() {
		t.Error("zero-height container must not be usable")
	}
	b.MarkContainer("pane-0", "map", 800, 600)
	if c, _ := b.ContainerFor("pane-0", "map"); !c.Usable() {
		t.Error("sized container must be usable")
	}
}

func TestNilSenderIsSafe(t *testing.T) {
	b := New(nil)
	b.Send(Command{Op: "noop"})
	p := b.Request(Command{Op: "noop"})
	p.Cancel()
}
