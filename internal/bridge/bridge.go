// Package bridge carries structured traffic between the Go sync engine and the
// webview that hosts the third-party map SDKs. Commands flow out through a
// Sender (Wails event emitter in production, a recorder in tests, a websocket
// in the dev harness); SDK events flow back in through Dispatch and are routed
// to per-pane subscribers. Asynchronous SDK calls (panorama lookup, module
// load) are modeled as cancellable pending requests with explicit
// success/not-found/failure results.
package bridge

import (
	"log"
	"sync"
)

// Command is a single instruction for the SDK host
type Command struct {
	Pane     string         `json:"pane"`
	Provider string         `json:"provider"`
	Op       string         `json:"op"`
	Seq      int64          `json:"seq,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
}

// Event is a single notification from the SDK host back to the engine
type Event struct {
	Pane     string         `json:"pane"`
	Provider string         `json:"provider"`
	Kind     string         `json:"kind"`
	Seq      int64          `json:"seq,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Event kinds emitted by the SDK host
const (
	EventDragStart     = "drag-start"
	EventDragEnd       = "drag-end"
	EventCenterChanged = "center-changed"
	EventZoomChanged   = "zoom-changed"
	EventClick         = "click"
	EventMouseMove     = "mouse-move"
	EventRightClick    = "right-click"
	EventPanoPosition  = "pano-position"
	EventPanoHeading   = "pano-heading"
	EventRequestResult = "request-result"
)

// Request result statuses
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

// Result is the completion of an asynchronous request
type Result struct {
	Status  string         `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Float reads a numeric payload field, tolerating JSON number decoding
func (r Result) Float(key string) float64 {
	return floatField(r.Payload, key)
}

// Str reads a string payload field
func (r Result) Str(key string) string {
	s, _ := r.Payload[key].(string)
	return s
}

// Float reads a numeric payload field from an event
func (e Event) Float(key string) float64 {
	return floatField(e.Payload, key)
}

// Int reads an integer payload field from an event
func (e Event) Int(key string) int {
	return int(floatField(e.Payload, key))
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Sender delivers commands to whatever hosts the SDKs
type Sender interface {
	SendCommand(cmd Command)
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(Command)

// SendCommand implements Sender
func (f SenderFunc) SendCommand(cmd Command) { f(cmd) }

// Pending is an in-flight asynchronous request. Exactly one Result is
// delivered on Done unless the request is cancelled first.
type Pending struct {
	seq      int64
	ch       chan Result
	once     sync.Once
	bridge   *Bridge
	onCancel func()
}

// NewPending creates a detached pending completed by the caller, optionally
// propagating Cancel to an underlying request
func NewPending(onCancel func()) *Pending {
	return &Pending{ch: make(chan Result, 1), onCancel: onCancel}
}

// Resolved returns an already-completed pending carrying res
func Resolved(res Result) *Pending {
	p := NewPending(nil)
	p.Complete(res)
	return p
}

// Done returns the completion channel for the request
func (p *Pending) Done() <-chan Result { return p.ch }

// Complete delivers a result to a detached pending; later completions and
// cancellations are no-ops
func (p *Pending) Complete(res Result) { p.complete(res) }

// Cancel abandons the request; a late completion becomes a no-op
func (p *Pending) Cancel() {
	if p.bridge != nil {
		p.bridge.forget(p.seq)
	}
	if p.onCancel != nil {
		p.onCancel()
	}
	p.complete(Result{Status: StatusFailed, Error: "cancelled"})
}

func (p *Pending) complete(res Result) {
	p.once.Do(func() {
		p.ch <- res
		close(p.ch)
	})
}

// Container describes a mounted DOM container reported by the SDK host
type Container struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Usable reports whether the container can actually render a map: providers
// silently draw nothing into a zero-sized element
func (c Container) Usable() bool { return c.Width > 0 && c.Height > 0 }

type subscriber struct {
	id int64
	fn func(Event)
}

// Bridge routes commands out and events back in, and tracks SDK/container
// readiness reported by the host. Safe for concurrent use.
type Bridge struct {
	mu       sync.Mutex
	sender   Sender
	seq      int64
	nextSub  int64
	pending  map[int64]*Pending
	subs     map[string][]subscriber
	sdkReady map[string]bool
	mounted  map[string]Container
}

// New creates a bridge that delivers commands through sender
func New(sender Sender) *Bridge {
	return &Bridge{
		sender:   sender,
		pending:  make(map[int64]*Pending),
		subs:     make(map[string][]subscriber),
		sdkReady: make(map[string]bool),
		mounted:  make(map[string]Container),
	}
}

// SetSender swaps the command sink; used at startup once the Wails context
// exists, and by the dev harness
func (b *Bridge) SetSender(sender Sender) {
	b.mu.Lock()
	b.sender = sender
	b.mu.Unlock()
}

// Send delivers a fire-and-forget command
func (b *Bridge) Send(cmd Command) {
	b.mu.Lock()
	sender := b.sender
	b.mu.Unlock()
	if sender != nil {
		sender.SendCommand(cmd)
	}
}

// Request delivers a command that expects an asynchronous completion and
// returns the pending handle tracking it
func (b *Bridge) Request(cmd Command) *Pending {
	b.mu.Lock()
	b.seq++
	cmd.Seq = b.seq
	p := &Pending{seq: cmd.Seq, ch: make(chan Result, 1), bridge: b}
	b.pending[cmd.Seq] = p
	sender := b.sender
	b.mu.Unlock()

	if sender != nil {
		sender.SendCommand(cmd)
	}
	return p
}

func (b *Bridge) forget(seq int64) {
	b.mu.Lock()
	delete(b.pending, seq)
	b.mu.Unlock()
}

// Subscribe registers a handler for events of the given kind on the given
// pane and returns its unsubscribe function
func (b *Bridge) Subscribe(pane, kind string, fn func(Event)) func() {
	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	key := pane + "|" + kind
	b.subs[key] = append(b.subs[key], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[key]
		for i, s := range list {
			if s.id == id {
				b.subs[key] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions for a pane across
// all event kinds
func (b *Bridge) SubscriberCount(pane string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for key, list := range b.subs {
		if len(key) > len(pane) && key[:len(pane)+1] == pane+"|" {
			n += len(list)
		}
	}
	return n
}

// Dispatch routes one host event: request completions resolve their pending
// handle, everything else fans out to subscribers
func (b *Bridge) Dispatch(ev Event) {
	if ev.Kind == EventRequestResult {
		b.mu.Lock()
		p, ok := b.pending[ev.Seq]
		delete(b.pending, ev.Seq)
		b.mu.Unlock()
		if !ok {
			log.Printf("[Bridge] Dropping result for unknown request seq=%d", ev.Seq)
			return
		}
		res := Result{Status: StatusOK, Payload: ev.Payload}
		if s, ok := ev.Payload["status"].(string); ok && s != "" {
			res.Status = s
		}
		if e, ok := ev.Payload["error"].(string); ok {
			res.Error = e
		}
		p.complete(res)
		return
	}

	b.mu.Lock()
	list := append([]subscriber(nil), b.subs[ev.Pane+"|"+ev.Kind]...)
	b.mu.Unlock()
	for _, s := range list {
		s.fn(ev)
	}
}

// MarkSDKReady records that a provider's SDK global has finished loading
func (b *Bridge) MarkSDKReady(provider string) {
	b.mu.Lock()
	b.sdkReady[provider] = true
	b.mu.Unlock()
	log.Printf("[Bridge] SDK ready: %s", provider)
}

// SDKReady reports whether a provider's SDK has been reported loaded
func (b *Bridge) SDKReady(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sdkReady[provider]
}

// MarkContainer records a mounted container element and its measured size.
// Containers are keyed by pane plus element role ("map", "panorama").
func (b *Bridge) MarkContainer(pane, role string, width, height int) {
	b.mu.Lock()
	b.mounted[pane+"|"+role] = Container{Width: width, Height: height}
	b.mu.Unlock()
}

// ContainerFor returns the last reported container for a pane element role
func (b *Bridge) ContainerFor(pane, role string) (Container, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.mounted[pane+"|"+role]
	return c, ok
}
