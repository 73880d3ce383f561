// Package pane is the per-viewport orchestrator: it owns the provider
// selection, the SDK-readiness polling loop, and every reconciliation effect
// that keeps one pane's native map consistent with the shared camera and
// street-view state without feedback loops.
package pane

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
	"mapsync-desktop/internal/measure"
	"mapsync-desktop/internal/provider"
	"mapsync-desktop/internal/schedule"
	"mapsync-desktop/internal/statesync"
	"mapsync-desktop/internal/streetview"
)

// opLayout tells the SDK host to swap between the full-map and
// mini-map/panorama layouts for this pane
const opLayout = "layout"

// Config is the immutable per-pane provider selection; changing the provider
// rebuilds the pane's map instance and every derived resource
type Config struct {
	Provider  string `json:"provider"`
	Satellite bool   `json:"satellite"`
}

// Pane is one independently configured map viewport bound to a provider
// adapter, a measurement engine, and a street-view coordinator
type Pane struct {
	id     string
	br     *bridge.Bridge
	store  *statesync.Store
	timing common.Timing

	mu           sync.Mutex
	cfg          Config
	adapter      provider.Adapter
	engine       *measure.Engine
	sv           *streetview.Coordinator
	timers       *schedule.Timers
	mode         common.Mode
	cadastral    bool
	dragging     bool
	programmatic bool
	open         bool
	pollGen      int
	pollStop     chan struct{}
	eventUnsubs  []func()
	storeUnsubs  []func()
	relayoutFn   func(func())
	popupSeq     int
}

// New creates a closed pane; call Open to bring it up
func New(id string, cfg Config, br *bridge.Bridge, store *statesync.Store, timing common.Timing) (*Pane, error) {
	if !common.KnownProvider(cfg.Provider) {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	return &Pane{
		id:     id,
		br:     br,
		store:  store,
		timing: timing,
		cfg:    cfg,
		mode:   common.ModeDefault,
	}, nil
}

// ID returns the pane identifier
func (p *Pane) ID() string { return p.id }

// Config returns the current provider configuration
func (p *Pane) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Mode returns the current interaction mode
func (p *Pane) Mode() common.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// StreetViewActive reports whether this pane currently shows a panorama
func (p *Pane) StreetViewActive() bool {
	p.mu.Lock()
	sv := p.sv
	p.mu.Unlock()
	return sv != nil && sv.State() == streetview.StateActive
}

// Open builds the pane's session: adapter, engine, coordinator, shared-state
// subscriptions, and the readiness poll
func (p *Pane) Open() error {
	p.mu.Lock()
	if p.open {
		p.mu.Unlock()
		return nil
	}
	p.open = true
	cfg := p.cfg
	p.mu.Unlock()

	if err := p.buildSession(cfg); err != nil {
		p.mu.Lock()
		p.open = false
		p.mu.Unlock()
		return err
	}

	unsubCam := p.store.OnCamera(func(origin string, state geo.MapState) {
		if origin == p.id {
			return
		}
		p.ApplyCamera(state)
	})
	unsubSV := p.store.OnStreetView(func(origin string, sv *statesync.StreetViewState) {
		if origin == p.id {
			return
		}
		p.mu.Lock()
		coord := p.sv
		p.mu.Unlock()
		if coord != nil {
			coord.HandleExternal(sv)
		}
	})

	p.mu.Lock()
	p.storeUnsubs = []func(){unsubCam, unsubSV}
	p.mu.Unlock()

	log.Printf("[Pane:%s] Opened with provider %s", p.id, cfg.Provider)
	return nil
}

// buildSession constructs all per-provider resources and starts polling
func (p *Pane) buildSession(cfg Config) error {
	adapter, err := provider.New(cfg.Provider, p.id, p.br)
	if err != nil {
		return err
	}

	timers := schedule.NewTimers()
	engine := measure.NewEngine(adapter)
	sv := streetview.NewCoordinator(p.id, adapter, timers, p.timing, streetview.Callbacks{
		PublishCamera: func(state geo.MapState) {
			p.store.PublishCamera(p.id, state)
		},
		PublishStreetView: func(state *statesync.StreetViewState) {
			p.store.PublishStreetView(p.id, state)
		},
		LayoutChanged: p.onLayoutChanged,
	})

	p.mu.Lock()
	p.cfg = cfg
	p.adapter = adapter
	p.engine = engine
	p.sv = sv
	p.timers = timers
	p.mode = common.ModeDefault
	p.cadastral = false
	p.dragging = false
	p.programmatic = false
	p.relayoutFn = debounce.New(p.timing.LayoutSettle)
	p.mu.Unlock()

	p.startPoll(adapter, cfg)
	return nil
}

// startPoll runs the fixed-interval readiness loop until the provider SDK and
// container are both usable, then performs one-time initialization
func (p *Pane) startPoll(adapter provider.Adapter, cfg Config) {
	stop := make(chan struct{})

	p.mu.Lock()
	p.pollGen++
	gen := p.pollGen
	p.pollStop = stop
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(p.timing.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			if !adapter.EnsureReady() {
				continue
			}
			err := adapter.Initialize(provider.InitOptions{
				Center:    p.store.Camera(),
				Satellite: cfg.Satellite,
			})
			if err != nil {
				// Transient by design; keep polling
				continue
			}

			p.mu.Lock()
			if p.pollGen != gen {
				p.mu.Unlock()
				return
			}
			p.pollStop = nil
			p.mu.Unlock()

			p.attachMapEvents(adapter)
			log.Printf("[Pane:%s] Map ready", p.id)
			return
		}
	}()
}

func (p *Pane) stopPoll() {
	p.mu.Lock()
	stop := p.pollStop
	p.pollStop = nil
	p.pollGen++
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// attachMapEvents wires the native map events the pane itself consumes
func (p *Pane) attachMapEvents(adapter provider.Adapter) {
	unsubs := []func(){
		adapter.Subscribe(bridge.EventDragStart, func(bridge.Event) {
			p.mu.Lock()
			p.dragging = true
			timers := p.timers
			p.mu.Unlock()
			if timers != nil {
				timers.Cancel("drag-clear")
			}
		}),
		adapter.Subscribe(bridge.EventDragEnd, func(bridge.Event) {
			p.mu.Lock()
			p.dragging = false
			p.mu.Unlock()
		}),
		adapter.Subscribe(bridge.EventCenterChanged, func(bridge.Event) {
			p.publishNativeCamera(adapter)
		}),
		adapter.Subscribe(bridge.EventZoomChanged, func(bridge.Event) {
			p.publishNativeCamera(adapter)
		}),
		adapter.Subscribe(bridge.EventClick, p.handleClick),
	}

	p.mu.Lock()
	p.eventUnsubs = unsubs
	p.mu.Unlock()
}

// ApplyCamera is the external-state-to-native reconciliation effect: push the
// shared camera into the native map unless the user is mid-drag, guarding the
// resulting native change events from being re-published as user input
func (p *Pane) ApplyCamera(state geo.MapState) {
	p.mu.Lock()
	adapter := p.adapter
	timers := p.timers
	if adapter == nil || !adapter.Initialized() || p.dragging {
		p.mu.Unlock()
		return
	}
	if geo.SameCamera(adapter.Camera(), state) {
		p.mu.Unlock()
		return
	}
	p.programmatic = true
	p.mu.Unlock()

	adapter.SetCamera(state)

	// The guard outlives the write long enough to swallow the provider's
	// own change events; the dragging flag is also auto-cleared in case the
	// provider never emits drag-end for a programmatic move
	timers.After("guard", p.timing.GuardWindow, func() {
		p.mu.Lock()
		p.programmatic = false
		p.mu.Unlock()
	})
	timers.After("drag-clear", p.timing.GuardWindow, func() {
		p.mu.Lock()
		p.dragging = false
		p.mu.Unlock()
	})

	p.scheduleRelayout(adapter)
}

// publishNativeCamera is the native-to-external reconciliation effect: a
// user-driven camera change becomes a shared-state publish unless the
// programmatic guard is up or the change is inside the tolerance band
func (p *Pane) publishNativeCamera(adapter provider.Adapter) {
	p.mu.Lock()
	if p.programmatic {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	current := adapter.Camera()
	if geo.SameCamera(p.store.Camera(), current) {
		return
	}
	p.store.PublishCamera(p.id, current)
	p.scheduleRelayout(adapter)
}

// scheduleRelayout asks the provider to re-measure its container after the
// layout transition settles; repeated triggers collapse into one call
func (p *Pane) scheduleRelayout(adapter provider.Adapter) {
	p.mu.Lock()
	fn := p.relayoutFn
	p.mu.Unlock()
	if fn == nil {
		return
	}
	fn(func() {
		if adapter.Initialized() {
			adapter.Relayout(adapter.Camera())
		}
	})
}

// RefreshLayout schedules a settle-delayed relayout; used when the host
// rearranges panes (fullscreen toggle) outside this pane's own effects
func (p *Pane) RefreshLayout() {
	p.mu.Lock()
	adapter := p.adapter
	p.mu.Unlock()
	if adapter != nil {
		p.scheduleRelayout(adapter)
	}
}

// onLayoutChanged reacts to street-view activation flips: tell the host to
// swap layouts, then relayout once the CSS transition has finished
func (p *Pane) onLayoutChanged(active bool) {
	p.mu.Lock()
	adapter := p.adapter
	cfg := p.cfg
	p.mu.Unlock()

	p.br.Send(bridge.Command{
		Pane:     p.id,
		Provider: cfg.Provider,
		Op:       opLayout,
		Args:     map[string]any{"streetView": active},
	})
	if adapter != nil {
		p.scheduleRelayout(adapter)
	}
}

// handleClick dispatches a plain map click by interaction mode. Measurement
// clicks never arrive here; the engine has its own subscription.
func (p *Pane) handleClick(ev bridge.Event) {
	pos := geo.LatLng{Lat: ev.Float("lat"), Lng: ev.Float("lng")}

	p.mu.Lock()
	mode := p.mode
	sv := p.sv
	adapter := p.adapter
	timers := p.timers
	p.mu.Unlock()

	switch mode {
	case common.ModeStreetViewPick:
		if sv != nil {
			sv.Enter(pos)
		}
	case common.ModeDefault:
		if adapter == nil || timers == nil {
			return
		}
		p.mu.Lock()
		p.popupSeq++
		id := fmt.Sprintf("popup-%d", p.popupSeq)
		p.mu.Unlock()

		adapter.ShowLabel(id, pos, fmt.Sprintf("%.6f, %.6f", pos.Lat, pos.Lng), false)
		timers.After(id, p.timing.PopupLifetime, func() {
			adapter.RemoveOverlay(id)
		})
	}
}

// SelectMode switches the exclusive interaction mode. Measurement modes and
// street-view-pick are mutually exclusive; leaving a measurement mode tears
// down its listeners and overlays.
func (p *Pane) SelectMode(mode common.Mode) error {
	p.mu.Lock()
	engine := p.engine
	prev := p.mode
	p.mode = mode
	p.mu.Unlock()

	if engine == nil {
		return fmt.Errorf("pane %s not open", p.id)
	}
	if prev == mode {
		return nil
	}

	if mode.Measuring() {
		return engine.Start(mode)
	}
	if prev.Measuring() {
		engine.Stop()
	}
	log.Printf("[Pane:%s] Mode %s", p.id, mode)
	return nil
}

// SetCadastralLayer toggles the cadastral overlay on providers that have one
func (p *Pane) SetCadastralLayer(on bool) {
	p.mu.Lock()
	p.cadastral = on
	adapter := p.adapter
	p.mu.Unlock()
	if adapter != nil {
		adapter.SetCadastralLayer(on)
	}
}

// ClearMeasurements is the toolbar clear action: every measurement overlay
// and listener goes away and the pane returns to the default mode
func (p *Pane) ClearMeasurements() {
	p.mu.Lock()
	engine := p.engine
	p.mode = common.ModeDefault
	p.mu.Unlock()
	if engine != nil {
		engine.Clear()
	}
}

// SetSatellite is the map-type passthrough effect
func (p *Pane) SetSatellite(on bool) {
	p.mu.Lock()
	p.cfg.Satellite = on
	adapter := p.adapter
	p.mu.Unlock()
	if adapter != nil {
		adapter.SetMapType(on)
	}
}

// SetSearchResult replaces the search marker, or clears it when pos is nil
func (p *Pane) SetSearchResult(pos *geo.LatLng) {
	p.mu.Lock()
	adapter := p.adapter
	p.mu.Unlock()
	if adapter == nil {
		return
	}
	adapter.RemoveMarker(provider.MarkerSearch)
	if pos != nil {
		adapter.PlaceMarker(provider.MarkerSearch, *pos)
	}
}

// EnterStreetView starts the street-view entry sequence at pos; exposed for
// the street-layer click path on the host side
func (p *Pane) EnterStreetView(pos geo.LatLng) {
	p.mu.Lock()
	sv := p.sv
	p.mu.Unlock()
	if sv != nil {
		sv.Enter(pos)
	}
}

// ExitStreetView closes street view and clears the shared side channel
func (p *Pane) ExitStreetView() {
	p.mu.Lock()
	sv := p.sv
	p.mu.Unlock()
	if sv != nil {
		sv.Exit()
	}
}

// SetProvider is the provider-switch effect: tear down every resource derived
// from the previous provider, then rebuild against the new one
func (p *Pane) SetProvider(cfg Config) error {
	if !common.KnownProvider(cfg.Provider) {
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	p.mu.Lock()
	if !p.open {
		p.cfg = cfg
		p.mu.Unlock()
		return nil
	}
	same := p.cfg.Provider == cfg.Provider
	p.mu.Unlock()

	if same {
		// Only the map type may have changed
		p.SetSatellite(cfg.Satellite)
		return nil
	}

	p.teardownSession()
	if err := p.buildSession(cfg); err != nil {
		return err
	}
	log.Printf("[Pane:%s] Switched provider to %s", p.id, cfg.Provider)
	return nil
}

// teardownSession releases everything derived from the current provider
func (p *Pane) teardownSession() {
	p.stopPoll()

	p.mu.Lock()
	engine := p.engine
	sv := p.sv
	adapter := p.adapter
	timers := p.timers
	unsubs := p.eventUnsubs
	p.eventUnsubs = nil
	p.engine = nil
	p.sv = nil
	p.adapter = nil
	p.timers = nil
	p.relayoutFn = nil
	p.mode = common.ModeDefault
	p.cadastral = false
	p.mu.Unlock()

	if engine != nil {
		engine.Stop()
	}
	if sv != nil {
		sv.Teardown()
	}
	for _, unsub := range unsubs {
		unsub()
	}
	if timers != nil {
		timers.Close()
	}
	if adapter != nil {
		adapter.Teardown()
	}
}

// Close tears the pane down entirely, including shared-state subscriptions
func (p *Pane) Close() {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return
	}
	p.open = false
	storeUnsubs := p.storeUnsubs
	p.storeUnsubs = nil
	p.mu.Unlock()

	for _, unsub := range storeUnsubs {
		unsub()
	}
	p.teardownSession()
	log.Printf("[Pane:%s] Closed", p.id)
}
