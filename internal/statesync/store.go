// Package statesync holds the two pieces of state shared across map panes:
// the provider-agnostic camera and the street-view side channel. Both are
// single-writer-at-a-time by convention; publishes carry the originating pane
// id so subscribers can tell their own echoes from sibling updates.
package statesync

import (
	"sync"

	"mapsync-desktop/internal/geo"
)

// StreetViewState says "some pane has an active street-level view centered
// here". A nil state means no pane is in street view.
type StreetViewState struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Active bool    `json:"active"`
}

// Position returns the street-view center as a LatLng
func (s StreetViewState) Position() geo.LatLng {
	return geo.LatLng{Lat: s.Lat, Lng: s.Lng}
}

// CameraFunc observes camera publishes; origin is the publishing pane id
type CameraFunc func(origin string, state geo.MapState)

// StreetViewFunc observes street-view publishes; sv is nil when cleared
type StreetViewFunc func(origin string, sv *StreetViewState)

// Store is the shared state container owned by the app above all panes
type Store struct {
	mu      sync.Mutex
	camera  geo.MapState
	street  *StreetViewState
	nextID  int64
	camSubs map[int64]CameraFunc
	svSubs  map[int64]StreetViewFunc
}

// NewStore creates a store with the given initial camera
func NewStore(initial geo.MapState) *Store {
	initial.Zoom = geo.ClampZoom(initial.Zoom)
	return &Store{
		camera:  initial,
		camSubs: make(map[int64]CameraFunc),
		svSubs:  make(map[int64]StreetViewFunc),
	}
}

// Camera returns the current shared camera state
func (s *Store) Camera() geo.MapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// StreetView returns a copy of the current street-view state, or nil
func (s *Store) StreetView() *StreetViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.street == nil {
		return nil
	}
	sv := *s.street
	return &sv
}

// PublishCamera updates the shared camera and notifies subscribers. A publish
// indistinguishable from the current state is dropped, which keeps a pane
// pushing its own echo from ping-ponging with its siblings.
func (s *Store) PublishCamera(origin string, state geo.MapState) {
	state.Zoom = geo.ClampZoom(state.Zoom)

	s.mu.Lock()
	if geo.SameCamera(s.camera, state) {
		s.mu.Unlock()
		return
	}
	s.camera = state
	subs := make([]CameraFunc, 0, len(s.camSubs))
	for _, fn := range s.camSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(origin, state)
	}
}

// PublishStreetView updates the street-view side channel and notifies
// subscribers. Unlike the camera there is no dedupe here: the reentrancy
// tolerance lives in each pane's coordinator, which also needs to see
// repositioning updates from its siblings.
func (s *Store) PublishStreetView(origin string, sv *StreetViewState) {
	s.mu.Lock()
	if sv == nil {
		s.street = nil
	} else {
		cp := *sv
		s.street = &cp
	}
	subs := make([]StreetViewFunc, 0, len(s.svSubs))
	for _, fn := range s.svSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(origin, sv)
	}
}

// OnCamera subscribes to camera publishes and returns an unsubscribe function
func (s *Store) OnCamera(fn CameraFunc) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.camSubs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.camSubs, id)
		s.mu.Unlock()
	}
}

// OnStreetView subscribes to street-view publishes and returns an unsubscribe
// function
func (s *Store) OnStreetView(fn StreetViewFunc) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.svSubs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.svSubs, id)
		s.mu.Unlock()
	}
}
