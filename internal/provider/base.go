package provider

import (
	"log"
	"sync"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/geo"
)

// pointerEvents are only attached on the host while something subscribes to
// them; everything else is wired at map construction time
var pointerEvents = map[string]bool{
	bridge.EventClick:      true,
	bridge.EventMouseMove:  true,
	bridge.EventRightClick: true,
}

// base carries the behavior shared by all three adapters. The concrete
// adapters configure the zoom conversion hooks and override the street-view
// sub-contract where their SDKs diverge.
type base struct {
	pane     string
	provider string
	br       *bridge.Bridge

	// zoom conversion hooks; identity unless the native scale differs
	zoomToNative   func(int) int
	zoomFromNative func(int) int

	mu          sync.Mutex
	initialized bool
	satellite   bool
	mirror      geo.MapState
	markers     map[string]*Marker
	overlays    map[string]bool
	walker      bool
	listeners   map[string]int // pointer-event subscription counts
	unsubs      []func()
}

func newBase(provider, pane string, br *bridge.Bridge) base {
	ident := func(z int) int { return z }
	return base{
		pane:           pane,
		provider:       provider,
		br:             br,
		zoomToNative:   ident,
		zoomFromNative: ident,
		markers:        make(map[string]*Marker),
		overlays:       make(map[string]bool),
		listeners:      make(map[string]int),
	}
}

func (b *base) ID() string   { return b.provider }
func (b *base) Pane() string { return b.pane }

func (b *base) send(op string, args map[string]any) {
	b.br.Send(bridge.Command{Pane: b.pane, Provider: b.provider, Op: op, Args: args})
}

// EnsureReady is plain SDK-global readiness; providers with extra async
// preparation override this
func (b *base) EnsureReady() bool {
	return b.br.SDKReady(b.provider)
}

func (b *base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Initialize constructs the native map once the SDK and container are there
func (b *base) Initialize(opts InitOptions) error {
	if !b.br.SDKReady(b.provider) {
		return ErrNotReady
	}
	if c, ok := b.br.ContainerFor(b.pane, ContainerMap); !ok || !c.Usable() {
		return ErrContainerNotReady
	}

	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return nil
	}
	b.initialized = true
	b.satellite = opts.Satellite
	b.mirror = opts.Center
	b.mu.Unlock()

	b.send(OpInit, map[string]any{
		"lat":       opts.Center.Lat,
		"lng":       opts.Center.Lng,
		"zoom":      b.zoomToNative(opts.Center.Zoom),
		"satellite": opts.Satellite,
	})

	// Keep the camera mirror current so SetCamera stays idempotent against
	// user-driven moves as well as programmatic ones
	unsubCenter := b.Subscribe(bridge.EventCenterChanged, func(ev bridge.Event) {
		b.mu.Lock()
		b.mirror.Lat = ev.Float("lat")
		b.mirror.Lng = ev.Float("lng")
		b.mu.Unlock()
	})
	unsubZoom := b.Subscribe(bridge.EventZoomChanged, func(ev bridge.Event) {
		b.mu.Lock()
		b.mirror.Zoom = ev.Int("zoom")
		b.mu.Unlock()
	})

	b.mu.Lock()
	b.unsubs = append(b.unsubs, unsubCenter, unsubZoom)
	b.mu.Unlock()

	log.Printf("[Provider:%s] Map initialized for pane %s", b.provider, b.pane)
	return nil
}

// SetCamera writes the camera unless the native map is already there
func (b *base) SetCamera(state geo.MapState) {
	state.Zoom = geo.ClampZoom(state.Zoom)

	b.mu.Lock()
	if !b.initialized || geo.SameCamera(b.mirror, state) {
		b.mu.Unlock()
		return
	}
	b.mirror = state
	b.mu.Unlock()

	b.send(OpSetCamera, map[string]any{
		"lat":  state.Lat,
		"lng":  state.Lng,
		"zoom": b.zoomToNative(state.Zoom),
	})
}

func (b *base) Camera() geo.MapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mirror
}

func (b *base) SetMapType(satellite bool) {
	b.mu.Lock()
	b.satellite = satellite
	b.mu.Unlock()
	b.send(OpSetMapType, map[string]any{"satellite": satellite})
}

func (b *base) PlaceMarker(kind string, pos geo.LatLng) *Marker {
	m := &Marker{Kind: kind, Pos: pos}
	b.mu.Lock()
	b.markers[kind] = m
	b.mu.Unlock()
	b.send(OpMarkerSet, map[string]any{"kind": kind, "lat": pos.Lat, "lng": pos.Lng})
	return m
}

func (b *base) RemoveMarker(kind string) {
	b.mu.Lock()
	_, ok := b.markers[kind]
	delete(b.markers, kind)
	b.mu.Unlock()
	if ok {
		b.send(OpMarkerRemove, map[string]any{"kind": kind})
	}
}

func (b *base) MarkerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.markers)
}

func (b *base) DrawPolyline(id string, path []geo.LatLng) {
	b.trackOverlay(id)
	b.send(OpPolylineSet, map[string]any{"id": id, "path": pathArgs(path)})
}

func (b *base) DrawPolygon(id string, path []geo.LatLng) {
	b.trackOverlay(id)
	b.send(OpPolygonSet, map[string]any{"id": id, "path": pathArgs(path)})
}

func (b *base) ShowLabel(id string, pos geo.LatLng, text string, dismissible bool) {
	b.trackOverlay(id)
	b.send(OpLabelShow, map[string]any{
		"id":          id,
		"lat":         pos.Lat,
		"lng":         pos.Lng,
		"text":        text,
		"dismissible": dismissible,
	})
}

func (b *base) RemoveOverlay(id string) {
	b.mu.Lock()
	_, ok := b.overlays[id]
	delete(b.overlays, id)
	b.mu.Unlock()
	if ok {
		b.send(OpOverlayRemove, map[string]any{"id": id})
	}
}

func (b *base) OverlayCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.overlays)
}

func (b *base) trackOverlay(id string) {
	b.mu.Lock()
	b.overlays[id] = true
	b.mu.Unlock()
}

func pathArgs(path []geo.LatLng) []map[string]any {
	out := make([]map[string]any, len(path))
	for i, p := range path {
		out[i] = map[string]any{"lat": p.Lat, "lng": p.Lng}
	}
	return out
}

// Subscribe routes bridge events for this pane, normalizing native zoom on
// zoom-changed events, and lazily attaches pointer listeners on the host
func (b *base) Subscribe(kind string, fn func(bridge.Event)) func() {
	handler := fn
	if kind == bridge.EventZoomChanged {
		handler = func(ev bridge.Event) {
			if ev.Payload != nil {
				// Normalize into a copy; the payload map is shared with the
				// other subscribers of this event
				norm := make(map[string]any, len(ev.Payload))
				for k, val := range ev.Payload {
					norm[k] = val
				}
				norm["zoom"] = float64(b.zoomFromNative(ev.Int("zoom")))
				ev.Payload = norm
			}
			fn(ev)
		}
	}

	if pointerEvents[kind] {
		b.mu.Lock()
		b.listeners[kind]++
		first := b.listeners[kind] == 1
		b.mu.Unlock()
		if first {
			b.send(OpListen, map[string]any{"kind": kind})
		}
	}

	unsub := b.br.Subscribe(b.pane, kind, handler)
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			if pointerEvents[kind] {
				b.mu.Lock()
				b.listeners[kind]--
				last := b.listeners[kind] == 0
				b.mu.Unlock()
				if last {
					b.send(OpUnlisten, map[string]any{"kind": kind})
				}
			}
		})
	}
}

func (b *base) SetWalker(pos geo.LatLng, headingDeg float64) {
	b.mu.Lock()
	b.walker = true
	b.mu.Unlock()
	b.send(OpWalkerSet, map[string]any{
		"lat":     pos.Lat,
		"lng":     pos.Lng,
		"heading": headingDeg,
		// The icon's feet mark the actual position, so rotation happens
		// about the bottom-center anchor
		"anchor": "bottom-center",
	})
}

func (b *base) ClearWalker() {
	b.mu.Lock()
	had := b.walker
	b.walker = false
	b.mu.Unlock()
	if had {
		b.send(OpWalkerRemove, nil)
	}
}

func (b *base) HasWalker() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.walker
}

// SetCadastralLayer is a no-op unless the provider overrides it
func (b *base) SetCadastralLayer(on bool) {
	log.Printf("[Provider:%s] Cadastral layer not supported", b.provider)
}

func (b *base) Relayout(center geo.MapState) {
	b.mu.Lock()
	initialized := b.initialized
	b.mu.Unlock()
	if !initialized {
		return
	}
	b.send(OpRelayout, map[string]any{
		"lat":  center.Lat,
		"lng":  center.Lng,
		"zoom": b.zoomToNative(center.Zoom),
	})
}

// Teardown releases everything the adapter created. The host destroys the
// native map and all attached objects on the teardown command; the Go side
// drops its handles so stale timer callbacks become no-ops.
func (b *base) Teardown() {
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	b.mu.Lock()
	b.initialized = false
	b.markers = make(map[string]*Marker)
	b.overlays = make(map[string]bool)
	b.walker = false
	b.listeners = make(map[string]int)
	b.mu.Unlock()

	b.send(OpTeardown, nil)
	log.Printf("[Provider:%s] Torn down pane %s", b.provider, b.pane)
}
