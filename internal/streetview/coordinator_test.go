package streetview

import (
	"sync"
	"testing"
	"time"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
	"mapsync-desktop/internal/provider"
	"mapsync-desktop/internal/schedule"
	"mapsync-desktop/internal/statesync"
)

type recorder struct {
	mu   sync.Mutex
	cmds []bridge.Command
}

func (r *recorder) SendCommand(cmd bridge.Command) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
}

func (r *recorder) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

// published collects callback traffic under a lock
type published struct {
	mu      sync.Mutex
	cameras []geo.MapState
	streets []*statesync.StreetViewState
	layouts []bool
}

func (p *published) callbacks() Callbacks {
	return Callbacks{
		PublishCamera: func(state geo.MapState) {
			p.mu.Lock()
			p.cameras = append(p.cameras, state)
			p.mu.Unlock()
		},
		PublishStreetView: func(sv *statesync.StreetViewState) {
			p.mu.Lock()
			p.streets = append(p.streets, sv)
			p.mu.Unlock()
		},
		LayoutChanged: func(active bool) {
			p.mu.Lock()
			p.layouts = append(p.layouts, active)
			p.mu.Unlock()
		},
	}
}

func (p *published) lastStreet() (*statesync.StreetViewState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.streets) == 0 {
		return nil, false
	}
	return p.streets[len(p.streets)-1], true
}

func (p *published) layoutFlips() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.layouts...)
}

func fastTiming() common.Timing {
	return common.Timing{
		PollInterval:   time.Millisecond,
		GuardWindow:    time.Millisecond,
		LayoutSettle:   time.Millisecond,
		ContainerRetry: time.Millisecond,
		WalkerSettle:   time.Millisecond,
		PopupLifetime:  time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, providerID string, panoContainer bool) (*Coordinator, *bridge.Bridge, *recorder, provider.Adapter, *published) {
	t.Helper()
	rec := &recorder{}
	br := bridge.New(rec)
	br.MarkSDKReady(providerID)
	br.MarkContainer("pane-0", provider.ContainerMap, 800, 600)
	if panoContainer {
		br.MarkContainer("pane-0", provider.ContainerPanorama, 800, 600)
	}

	a, err := provider.New(providerID, "pane-0", br)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Initialize(provider.InitOptions{Center: geo.MapState{Lat: 37.5, Lng: 127.0, Zoom: 15}}); err != nil {
		t.Fatal(err)
	}

	timers := schedule.NewTimers()
	t.Cleanup(timers.Close)

	pub := &published{}
	c := NewCoordinator("pane-0", a, timers, fastTiming(), pub.callbacks())
	return c, br, rec, a, pub
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestEnterRunsFullSequence(t *testing.T) {
	c, _, rec, a, pub := newTestCoordinator(t, common.ProviderAtlas, true)

	pos := geo.LatLng{Lat: 37.51, Lng: 127.01}
	c.Enter(pos)

	waitFor(t, func() bool { return rec.count(provider.OpPanoCreate) == 1 })
	waitFor(t, a.HasWalker)
	waitFor(t, func() bool {
		sv, ok := pub.lastStreet()
		return ok && sv != nil && sv.Active
	})

	if c.State() != StateActive {
		t.Errorf("state = %v, want active", c.State())
	}
	if got := c.Position(); !geo.NearlyEqual(got, pos, geo.PanoramaTolerance) {
		t.Errorf("position = %+v, want entry position", got)
	}
	if flips := pub.layoutFlips(); len(flips) != 1 || !flips[0] {
		t.Errorf("layout flips = %v, want [true]", flips)
	}
	// The mini-map recentered on the panorama
	if cam := a.Camera(); !geo.NearlyEqual(cam.Position(), pos, geo.PanoramaTolerance) {
		t.Errorf("mini-map center = %+v, want panorama position", cam)
	}
}

func TestReentrancyGuard(t *testing.T) {
	c, _, rec, _, _ := newTestCoordinator(t, common.ProviderAtlas, true)

	pos := geo.LatLng{Lat: 37.51, Lng: 127.01}
	c.Enter(pos)
	waitFor(t, func() bool { return c.State() == StateActive })
	waitFor(t, func() bool { return rec.count(provider.OpPanoCreate) == 1 })

	// Within the tolerance band the request is swallowed
	c.Enter(geo.LatLng{Lat: pos.Lat + 5e-5, Lng: pos.Lng})
	time.Sleep(20 * time.Millisecond)
	if rec.count(provider.OpPanoCreate) != 1 {
		t.Error("a same-position entry must not rebind the panorama")
	}

	// Outside the band the view repositions without replaying the sequence
	far := geo.LatLng{Lat: pos.Lat + 1e-3, Lng: pos.Lng}
	c.Enter(far)
	waitFor(t, func() bool { return rec.count(provider.OpPanoCreate) == 2 })
	waitFor(t, func() bool { return geo.NearlyEqual(c.Position(), far, geo.PanoramaTolerance) })
	if c.State() != StateActive {
		t.Error("reposition must stay active")
	}
}

func TestEnterAbortsWhenNoPanorama(t *testing.T) {
	c, br, rec, _, pub := newTestCoordinator(t, common.ProviderVista, true)

	c.Enter(geo.LatLng{Lat: 37.51, Lng: 127.01})
	if c.State() != StateEntering {
		t.Fatalf("state = %v, want entering while the lookup runs", c.State())
	}

	rec.mu.Lock()
	var seq int64
	for _, cmd := range rec.cmds {
		if cmd.Op == provider.OpPanoResolve {
			seq = cmd.Seq
		}
	}
	rec.mu.Unlock()
	if seq == 0 {
		t.Fatal("entry must issue a panorama lookup")
	}

	br.Dispatch(bridge.Event{
		Pane: "pane-0", Kind: bridge.EventRequestResult, Seq: seq,
		Payload: map[string]any{"status": bridge.StatusNotFound},
	})

	waitFor(t, func() bool { return c.State() == StateInactive })
	if rec.count(provider.OpPanoCreate) != 0 {
		t.Error("a failed lookup must not bind a panorama")
	}
	if _, ok := pub.lastStreet(); ok {
		t.Error("an aborted entry must not touch the shared channel")
	}
	if len(pub.layoutFlips()) != 0 {
		t.Error("an aborted entry must not flip the layout")
	}
}

func TestEnterGivesUpWithoutContainer(t *testing.T) {
	c, _, rec, _, pub := newTestCoordinator(t, common.ProviderAtlas, false)

	c.Enter(geo.LatLng{Lat: 37.51, Lng: 127.01})
	waitFor(t, func() bool {
		flips := pub.layoutFlips()
		return len(flips) == 2 && flips[0] && !flips[1]
	})

	if c.State() != StateInactive {
		t.Errorf("state = %v, want inactive after retries run out", c.State())
	}
	if rec.count(provider.OpPanoCreate) != 0 {
		t.Error("binding must never succeed without a container")
	}
	// The abandoned entry publishes the cleared state so siblings exit too
	if sv, ok := pub.lastStreet(); !ok || sv != nil {
		t.Error("giving up must clear the shared channel")
	}
}

func TestExitCleansUp(t *testing.T) {
	c, br, rec, a, pub := newTestCoordinator(t, common.ProviderAtlas, true)

	c.Enter(geo.LatLng{Lat: 37.51, Lng: 127.01})
	waitFor(t, a.HasWalker)
	before := br.SubscriberCount("pane-0")

	c.Exit()
	if c.State() != StateInactive {
		t.Fatal("exit must land inactive")
	}
	if rec.count(provider.OpPanoDestroy) != 1 {
		t.Error("exit must destroy the panoramic view")
	}
	if a.HasWalker() {
		t.Error("exit must clear the walker")
	}
	if got := br.SubscriberCount("pane-0"); got != before-2 {
		t.Errorf("subscriptions = %d, want panorama listeners released (%d)", got, before-2)
	}
	if sv, ok := pub.lastStreet(); !ok || sv != nil {
		t.Error("exit must publish the cleared state")
	}
	if flips := pub.layoutFlips(); len(flips) != 2 || flips[1] {
		t.Errorf("layout flips = %v, want [true false]", flips)
	}

	// Exit when already inactive is a no-op
	c.Exit()
	if rec.count(provider.OpPanoDestroy) != 1 {
		t.Error("repeated exit must not send again")
	}
}

func TestTeardownDoesNotPublish(t *testing.T) {
	c, _, _, a, pub := newTestCoordinator(t, common.ProviderAtlas, true)

	c.Enter(geo.LatLng{Lat: 37.51, Lng: 127.01})
	waitFor(t, a.HasWalker)

	c.Teardown()
	if c.State() != StateInactive {
		t.Fatal("teardown must land inactive")
	}
	if sv, _ := pub.lastStreet(); sv == nil {
		t.Error("teardown must not publish the cleared state")
	}
}

func TestPanoramaMovementFollows(t *testing.T) {
	c, br, _, a, pub := newTestCoordinator(t, common.ProviderAtlas, true)

	c.Enter(geo.LatLng{Lat: 37.51, Lng: 127.01})
	waitFor(t, a.HasWalker)

	moved := geo.LatLng{Lat: 37.52, Lng: 127.02}
	br.Dispatch(bridge.Event{
		Pane: "pane-0", Kind: bridge.EventPanoPosition,
		Payload: map[string]any{"lat": moved.Lat, "lng": moved.Lng},
	})

	if !geo.NearlyEqual(c.Position(), moved, geo.PanoramaTolerance) {
		t.Errorf("position = %+v, want movement target", c.Position())
	}
	if cam := a.Camera(); !geo.NearlyEqual(cam.Position(), moved, geo.PanoramaTolerance) {
		t.Errorf("mini-map center = %+v, want movement target", cam)
	}
	pub.mu.Lock()
	nCam := len(pub.cameras)
	pub.mu.Unlock()
	if nCam == 0 {
		t.Error("walking must publish the shared camera")
	}
	if sv, ok := pub.lastStreet(); !ok || sv == nil || !sv.Active || sv.Lat != moved.Lat {
		t.Error("walking must publish the moved street-view state")
	}

	br.Dispatch(bridge.Event{
		Pane: "pane-0", Kind: bridge.EventPanoHeading,
		Payload: map[string]any{"heading": 270.0},
	})
	if !geo.NearlyEqual(c.Position(), moved, geo.PanoramaTolerance) {
		t.Error("a heading change must not move the position")
	}
}

func TestHandleExternal(t *testing.T) {
	c, _, rec, a, _ := newTestCoordinator(t, common.ProviderAtlas, true)

	c.HandleExternal(&statesync.StreetViewState{Lat: 37.51, Lng: 127.01, Active: true})
	waitFor(t, func() bool { return c.State() == StateActive })
	waitFor(t, a.HasWalker)

	c.HandleExternal(nil)
	if c.State() != StateInactive {
		t.Error("a cleared external state must exit")
	}
	if rec.count(provider.OpPanoDestroy) != 1 {
		t.Error("external exit must destroy the view")
	}
}
