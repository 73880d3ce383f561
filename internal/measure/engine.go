// Package measure implements the interactive distance and area measurement
// mode layered on top of one pane's map: point-by-point polyline/polygon
// construction with a live floating readout tracking the cursor, committed
// per-segment labels, and right-click finalization.
package measure

import (
	"fmt"
	"log"
	"math"
	"sync"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
	"mapsync-desktop/internal/provider"
)

// Engine owns one pane's measurement session: its vertices, overlays, and
// pointer-event subscriptions. All of them are released together by Stop or
// Clear so a mode switch can never leak a native handle.
type Engine struct {
	adapter provider.Adapter

	mu       sync.Mutex
	mode     common.Mode
	session  int
	vertices []geo.LatLng
	overlays map[string]bool
	open     bool
	unsubs   []func()
}

// NewEngine creates an idle engine bound to a pane's adapter
func NewEngine(adapter provider.Adapter) *Engine {
	return &Engine{
		adapter:  adapter,
		mode:     common.ModeDefault,
		overlays: make(map[string]bool),
	}
}

// Mode returns the engine's active measurement mode (ModeDefault when idle)
func (e *Engine) Mode() common.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Start switches the engine into a measurement mode, tearing down any
// previous mode's listeners and overlays first
func (e *Engine) Start(mode common.Mode) error {
	if !mode.Measuring() {
		return fmt.Errorf("not a measurement mode: %s", mode)
	}
	e.Stop()

	e.mu.Lock()
	e.mode = mode
	e.session++
	e.open = false
	e.vertices = nil
	e.mu.Unlock()

	unsubs := []func(){
		e.adapter.Subscribe(bridge.EventClick, e.handleClick),
		e.adapter.Subscribe(bridge.EventMouseMove, e.handleMove),
		e.adapter.Subscribe(bridge.EventRightClick, e.handleRightClick),
	}

	e.mu.Lock()
	e.unsubs = unsubs
	e.mu.Unlock()

	log.Printf("[Measure] Started %s session %d on pane %s", mode, e.session, e.adapter.Pane())
	return nil
}

// Stop unsubscribes every listener, removes every overlay the engine created,
// and returns the engine to the default mode
func (e *Engine) Stop() {
	e.mu.Lock()
	unsubs := e.unsubs
	e.unsubs = nil
	ids := make([]string, 0, len(e.overlays))
	for id := range e.overlays {
		ids = append(ids, id)
	}
	e.overlays = make(map[string]bool)
	e.vertices = nil
	e.open = false
	e.mode = common.ModeDefault
	e.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, id := range ids {
		e.adapter.RemoveOverlay(id)
	}
}

// Clear is the explicit toolbar action; identical to Stop
func (e *Engine) Clear() {
	e.Stop()
	log.Printf("[Measure] Cleared pane %s", e.adapter.Pane())
}

// VertexCount returns the number of committed vertices in the open session
func (e *Engine) VertexCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vertices)
}

// SessionOpen reports whether a session is accepting vertices
func (e *Engine) SessionOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *Engine) id(suffix string) string {
	return fmt.Sprintf("measure-%d-%s", e.session, suffix)
}

func (e *Engine) track(id string) {
	e.overlays[id] = true
}

func (e *Engine) handleClick(ev bridge.Event) {
	pos := geo.LatLng{Lat: ev.Float("lat"), Lng: ev.Float("lng")}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == common.ModeDefault {
		return
	}
	if !e.open {
		// A fresh session after a finalize keeps earlier stamps on the map
		// but draws into new overlay ids
		e.session++
		e.open = true
		e.vertices = nil
	}
	e.vertices = append(e.vertices, pos)

	shapeID := e.id("shape")
	e.track(shapeID)
	if e.mode == common.ModeArea {
		e.adapter.DrawPolygon(shapeID, append([]geo.LatLng(nil), e.vertices...))
	} else {
		e.adapter.DrawPolyline(shapeID, append([]geo.LatLng(nil), e.vertices...))
	}

	// Committing a vertex stamps the segment it closes
	if e.mode == common.ModeDistance && len(e.vertices) >= 2 {
		a := e.vertices[len(e.vertices)-2]
		b := e.vertices[len(e.vertices)-1]
		mid := geo.LatLng{Lat: (a.Lat + b.Lat) / 2, Lng: (a.Lng + b.Lng) / 2}
		segID := e.id(fmt.Sprintf("seg-%d", len(e.vertices)-1))
		e.track(segID)
		e.adapter.ShowLabel(segID, mid, formatDistance(geo.HaversineM(a, b)), false)
	}
}

func (e *Engine) handleMove(ev bridge.Event) {
	cursor := geo.LatLng{Lat: ev.Float("lat"), Lng: ev.Float("lng")}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || len(e.vertices) == 0 {
		return
	}

	var text string
	if e.mode == common.ModeArea {
		ring := append(append([]geo.LatLng(nil), e.vertices...), cursor)
		text = formatArea(geo.PolygonAreaM2(ring))
	} else {
		last := e.vertices[len(e.vertices)-1]
		text = formatDistance(geo.HaversineM(last, cursor))
	}

	floatID := e.id("float")
	e.track(floatID)
	e.adapter.ShowLabel(floatID, cursor, text, false)
}

func (e *Engine) handleRightClick(ev bridge.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return
	}

	if e.mode == common.ModeArea {
		// Two vertices cannot close a polygon; keep collecting
		if len(e.vertices) < 3 {
			return
		}
		e.finalizeLocked(formatArea(geo.PolygonAreaM2(e.vertices)))
		return
	}

	if len(e.vertices) < 2 {
		e.discardSessionLocked()
		return
	}
	e.finalizeLocked(formatDistance(geo.PathLengthM(e.vertices)))
}

// finalizeLocked stamps the session total at the last vertex with a dismiss
// control and closes the session; committed overlays stay until Clear
func (e *Engine) finalizeLocked(text string) {
	last := e.vertices[len(e.vertices)-1]
	totalID := e.id("total")
	e.track(totalID)
	e.adapter.ShowLabel(totalID, last, text, true)

	floatID := e.id("float")
	if e.overlays[floatID] {
		delete(e.overlays, floatID)
		e.adapter.RemoveOverlay(floatID)
	}

	e.open = false
	e.vertices = nil
}

// discardSessionLocked drops an underdrawn session's overlays entirely
func (e *Engine) discardSessionLocked() {
	for _, suffix := range []string{"shape", "float"} {
		id := e.id(suffix)
		if e.overlays[id] {
			delete(e.overlays, id)
			e.adapter.RemoveOverlay(id)
		}
	}
	e.open = false
	e.vertices = nil
}

// formatDistance rounds to the nearest whole meter for display
func formatDistance(meters float64) string {
	return fmt.Sprintf("%d m", int(math.Round(meters)))
}

// formatArea rounds to the nearest whole square meter for display
func formatArea(m2 float64) string {
	return fmt.Sprintf("%d m²", int(math.Round(m2)))
}
