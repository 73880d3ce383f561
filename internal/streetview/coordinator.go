// Package streetview owns the per-pane street-view state machine: the
// asynchronous multi-step entry sequence, in-place repositioning, the
// directional walker indicator on the mini-map, and the reentrancy guard that
// keeps sibling panes publishing to the same side channel from ping-ponging.
package streetview

import (
	"log"
	"sync"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
	"mapsync-desktop/internal/provider"
	"mapsync-desktop/internal/schedule"
	"mapsync-desktop/internal/statesync"
)

// State is the pane's street-view lifecycle state
type State int

const (
	// StateInactive means the pane shows the plain map
	StateInactive State = iota

	// StateEntering means the entry sequence is in flight; external updates
	// are ignored until it lands or aborts
	StateEntering

	// StateActive means the panoramic view is up and the mini-map tracks it
	StateActive
)

// maxEnterRetries bounds container-not-ready retries before the entry aborts
const maxEnterRetries = 5

// Callbacks connect the coordinator to the pane that owns it
type Callbacks struct {
	// PublishCamera pushes the panorama position into the shared camera
	PublishCamera func(state geo.MapState)

	// PublishStreetView pushes the side-channel state; nil clears it
	PublishStreetView func(sv *statesync.StreetViewState)

	// LayoutChanged reports street-view activation flips so the pane can
	// run its settle-delayed relayout
	LayoutChanged func(active bool)
}

// Coordinator runs one pane's street-view lifecycle on top of its adapter
type Coordinator struct {
	pane    string
	adapter provider.Adapter
	timers  *schedule.Timers
	timing  common.Timing
	cb      Callbacks

	mu      sync.Mutex
	state   State
	pos     geo.LatLng
	heading float64
	gen     int
	resolve *bridge.Pending
	unsubs  []func()
}

// NewCoordinator creates an inactive coordinator for a pane
func NewCoordinator(pane string, adapter provider.Adapter, timers *schedule.Timers, timing common.Timing, cb Callbacks) *Coordinator {
	return &Coordinator{
		pane:    pane,
		adapter: adapter,
		timers:  timers,
		timing:  timing,
		cb:      cb,
	}
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the current panorama position; meaningful while Active
func (c *Coordinator) Position() geo.LatLng {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Enter starts the entry sequence toward pos. While Active, an entry request
// within the panorama tolerance is ignored (reentrancy guard) and one outside
// it repositions in place without replaying the full sequence. While Entering,
// requests are dropped.
func (c *Coordinator) Enter(pos geo.LatLng) {
	if !c.adapter.SupportsStreetView() {
		return
	}

	c.mu.Lock()
	switch c.state {
	case StateEntering:
		c.mu.Unlock()
		return
	case StateActive:
		if geo.NearlyEqual(c.pos, pos, geo.PanoramaTolerance) {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.reposition(pos)
		return
	}

	c.state = StateEntering
	c.gen++
	gen := c.gen
	req := c.adapter.ResolvePanorama(pos)
	c.resolve = req
	c.mu.Unlock()

	go c.awaitResolve(gen, pos, req)
}

// HandleExternal consumes a street-view side-channel update published by a
// sibling pane
func (c *Coordinator) HandleExternal(sv *statesync.StreetViewState) {
	if sv == nil || !sv.Active {
		c.exit(false)
		return
	}
	c.Enter(sv.Position())
}

// Exit closes street view and publishes the cleared side-channel state
func (c *Coordinator) Exit() {
	c.exit(true)
}

// Teardown closes street view without publishing; used on provider switch and
// pane close where the shared channel must not be disturbed
func (c *Coordinator) Teardown() {
	c.exit(false)
}

func (c *Coordinator) awaitResolve(gen int, requested geo.LatLng, req *bridge.Pending) {
	res := <-req.Done()

	c.mu.Lock()
	if c.gen != gen || c.state != StateEntering {
		c.mu.Unlock()
		return
	}
	c.resolve = nil

	if res.Status != bridge.StatusOK {
		// No panorama within radius, or the lookup failed outright; both
		// leave the pane on the plain map with no error surfaced
		c.state = StateInactive
		c.mu.Unlock()
		log.Printf("[StreetView:%s] Entry aborted: %s", c.pane, res.Status)
		return
	}

	ref := provider.PanoramaRef{ID: res.Str("id"), Pos: requested}
	if _, ok := res.Payload["lat"]; ok {
		ref.Pos = geo.LatLng{Lat: res.Float("lat"), Lng: res.Float("lng")}
	}

	c.state = StateActive
	c.pos = ref.Pos
	c.heading = 0
	c.mu.Unlock()

	// Let the mini-map shrink transition begin, then bind the panorama to
	// its container once the layout has settled
	if c.cb.LayoutChanged != nil {
		c.cb.LayoutChanged(true)
	}
	c.timers.After("sv-bind", c.timing.LayoutSettle, func() {
		c.bindPanorama(gen, ref, 0)
	})
}

func (c *Coordinator) bindPanorama(gen int, ref provider.PanoramaRef, attempt int) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.adapter.EnterStreetView(ref); err != nil {
		if attempt+1 >= maxEnterRetries {
			log.Printf("[StreetView:%s] Giving up binding panorama: %v", c.pane, err)
			c.exit(true)
			return
		}
		c.timers.After("sv-bind", c.timing.ContainerRetry, func() {
			c.bindPanorama(gen, ref, attempt+1)
		})
		return
	}

	// Re-center the mini-map on the panorama and force it to re-measure its
	// shrunken container
	center := c.adapter.Camera()
	center.Lat, center.Lng = ref.Pos.Lat, ref.Pos.Lng
	c.adapter.SetCamera(center)
	c.adapter.Relayout(center)

	c.timers.After("sv-walker", c.timing.WalkerSettle, func() {
		c.mu.Lock()
		if c.gen != gen || c.state != StateActive {
			c.mu.Unlock()
			return
		}
		heading := c.heading
		c.mu.Unlock()
		c.adapter.SetWalker(ref.Pos, heading)
	})

	unsubs := []func(){
		c.adapter.Subscribe(bridge.EventPanoPosition, c.handlePanoPosition),
		c.adapter.Subscribe(bridge.EventPanoHeading, c.handlePanoHeading),
	}
	c.mu.Lock()
	c.unsubs = unsubs
	c.mu.Unlock()

	if c.cb.PublishStreetView != nil {
		c.cb.PublishStreetView(&statesync.StreetViewState{Lat: ref.Pos.Lat, Lng: ref.Pos.Lng, Active: true})
	}
	log.Printf("[StreetView:%s] Active at (%.6f, %.6f)", c.pane, ref.Pos.Lat, ref.Pos.Lng)
}

// reposition moves an already-active panorama without replaying the entry
// sequence: resolve, move the view, update mini-map and walker
func (c *Coordinator) reposition(pos geo.LatLng) {
	c.mu.Lock()
	gen := c.gen
	req := c.adapter.ResolvePanorama(pos)
	c.resolve = req
	c.mu.Unlock()

	go func() {
		res := <-req.Done()

		c.mu.Lock()
		if c.gen != gen || c.state != StateActive {
			c.mu.Unlock()
			return
		}
		c.resolve = nil
		if res.Status != bridge.StatusOK {
			c.mu.Unlock()
			log.Printf("[StreetView:%s] Reposition aborted: %s", c.pane, res.Status)
			return
		}
		ref := provider.PanoramaRef{ID: res.Str("id"), Pos: pos}
		if _, ok := res.Payload["lat"]; ok {
			ref.Pos = geo.LatLng{Lat: res.Float("lat"), Lng: res.Float("lng")}
		}
		c.pos = ref.Pos
		heading := c.heading
		c.mu.Unlock()

		if err := c.adapter.EnterStreetView(ref); err != nil {
			log.Printf("[StreetView:%s] Reposition bind failed: %v", c.pane, err)
			return
		}
		center := c.adapter.Camera()
		center.Lat, center.Lng = ref.Pos.Lat, ref.Pos.Lng
		c.adapter.SetCamera(center)
		c.adapter.SetWalker(ref.Pos, heading)
	}()
}

// handlePanoPosition follows the user walking through the panorama: mini-map
// recenter, walker move, and both shared-state publishes
func (c *Coordinator) handlePanoPosition(ev bridge.Event) {
	pos := geo.LatLng{Lat: ev.Float("lat"), Lng: ev.Float("lng")}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.pos = pos
	heading := c.heading
	c.mu.Unlock()

	center := c.adapter.Camera()
	center.Lat, center.Lng = pos.Lat, pos.Lng
	c.adapter.SetCamera(center)
	c.adapter.SetWalker(pos, heading)

	if c.cb.PublishCamera != nil {
		c.cb.PublishCamera(center)
	}
	if c.cb.PublishStreetView != nil {
		c.cb.PublishStreetView(&statesync.StreetViewState{Lat: pos.Lat, Lng: pos.Lng, Active: true})
	}
}

// handlePanoHeading only rotates the walker
func (c *Coordinator) handlePanoHeading(ev bridge.Event) {
	heading := ev.Float("heading")

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.heading = heading
	pos := c.pos
	c.mu.Unlock()

	c.adapter.SetWalker(pos, heading)
}

func (c *Coordinator) exit(publish bool) {
	c.mu.Lock()
	if c.state == StateInactive {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == StateActive
	c.state = StateInactive
	c.gen++
	req := c.resolve
	c.resolve = nil
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	c.timers.Cancel("sv-bind")
	c.timers.Cancel("sv-walker")
	if req != nil {
		req.Cancel()
	}
	for _, unsub := range unsubs {
		unsub()
	}

	if wasActive {
		c.adapter.ExitStreetView()
	}
	c.adapter.ClearWalker()

	if c.cb.LayoutChanged != nil {
		c.cb.LayoutChanged(false)
	}
	if publish && c.cb.PublishStreetView != nil {
		c.cb.PublishStreetView(nil)
	}
	log.Printf("[StreetView:%s] Inactive", c.pane)
}
