package statesync

import (
	"testing"

	"mapsync-desktop/internal/geo"
)

func TestPublishCameraDedupes(t *testing.T) {
	s := NewStore(geo.MapState{Lat: 37.5, Lng: 127.0, Zoom: 15})

	var got []geo.MapState
	var origins []string
	s.OnCamera(func(origin string, state geo.MapState) {
		origins = append(origins, origin)
		got = append(got, state)
	})

	// An indistinguishable publish is dropped
	s.PublishCamera("pane-0", geo.MapState{Lat: 37.5 + 5e-6, Lng: 127.0, Zoom: 15})
	if len(got) != 0 {
		t.Fatal("sub-tolerance publish must be dropped")
	}

	s.PublishCamera("pane-0", geo.MapState{Lat: 37.6, Lng: 127.1, Zoom: 10})
	if len(got) != 1 || origins[0] != "pane-0" {
		t.Fatalf("publish not delivered, got %v from %v", got, origins)
	}
	if cam := s.Camera(); cam.Lat != 37.6 || cam.Zoom != 10 {
		t.Errorf("stored camera = %+v", cam)
	}

	// Re-publishing the now-current state is dropped again
	s.PublishCamera("pane-1", geo.MapState{Lat: 37.6, Lng: 127.1, Zoom: 10})
	if len(got) != 1 {
		t.Error("echo publish must be dropped")
	}
}

func TestPublishCameraClampsZoom(t *testing.T) {
	s := NewStore(geo.MapState{Lat: 37.5, Lng: 127.0, Zoom: 15})
	s.PublishCamera("pane-0", geo.MapState{Lat: 37.6, Lng: 127.1, Zoom: 99})
	if cam := s.Camera(); cam.Zoom != geo.MaxZoom {
		t.Errorf("zoom = %d, want clamped to %d", cam.Zoom, geo.MaxZoom)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := NewStore(geo.MapState{Zoom: 15})
	n := 0
	unsub := s.OnCamera(func(string, geo.MapState) { n++ })
	s.PublishCamera("pane-0", geo.MapState{Lat: 1, Zoom: 15})
	unsub()
	s.PublishCamera("pane-0", geo.MapState{Lat: 2, Zoom: 15})
	if n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestStreetViewChannelHasNoDedupe(t *testing.T) {
	s := NewStore(geo.MapState{Zoom: 15})

	var seen []*StreetViewState
	s.OnStreetView(func(origin string, sv *StreetViewState) { seen = append(seen, sv) })

	sv := &StreetViewState{Lat: 37.5, Lng: 127.0, Active: true}
	s.PublishStreetView("pane-0", sv)
	s.PublishStreetView("pane-0", sv)
	if len(seen) != 2 {
		t.Fatalf("deliveries = %d, want 2: repositioning relies on repeats", len(seen))
	}

	// The store keeps its own copy
	sv.Lat = 99
	if got := s.StreetView(); got == nil || got.Lat != 37.5 {
		t.Error("stored state must not alias the caller's value")
	}

	s.PublishStreetView("pane-0", nil)
	if s.StreetView() != nil {
		t.Error("nil publish must clear the channel")
	}
	if len(seen) != 3 || seen[2] != nil {
		t.Error("the clear must reach subscribers as nil")
	}
}
