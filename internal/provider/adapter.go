// Package provider abstracts the three third-party map SDKs behind one
// adapter interface. Each adapter owns every native handle it creates (map,
// markers, overlays, panorama) and drives its SDK through structured bridge
// commands, normalizing quirks like zoom scales and panorama lifecycle so the
// pane orchestrator never branches on the provider id.
package provider

import (
	"errors"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
)

// Marker kinds with replace-on-place semantics
const (
	MarkerSearch     = "search"
	MarkerStreetView = "streetview"
)

// Container element roles reported by the SDK host
const (
	ContainerMap      = "map"
	ContainerPanorama = "panorama"
)

// Command ops understood by the SDK host
const (
	OpInit          = "init"
	OpSetCamera     = "set-camera"
	OpSetMapType    = "set-map-type"
	OpMarkerSet     = "marker-set"
	OpMarkerRemove  = "marker-remove"
	OpPolylineSet   = "polyline-set"
	OpPolygonSet    = "polygon-set"
	OpLabelShow     = "label-show"
	OpOverlayRemove = "overlay-remove"
	OpListen        = "listen"
	OpUnlisten      = "unlisten"
	OpModuleLoad    = "load-module"
	OpPanoResolve   = "pano-resolve"
	OpPanoCreate    = "pano-create"
	OpPanoShow      = "pano-show"
	OpPanoMove      = "pano-move"
	OpPanoHide      = "pano-hide"
	OpPanoDestroy   = "pano-destroy"
	OpWalkerSet     = "walker-set"
	OpWalkerRemove  = "walker-remove"
	OpCadastral     = "cadastral-layer"
	OpRelayout      = "relayout"
	OpTeardown      = "teardown"
)

var (
	// ErrNotReady means the SDK global or the map container is not available
	// yet; the caller should retry on its next poll tick
	ErrNotReady = errors.New("provider not ready")

	// ErrContainerNotReady means the target container is missing or zero
	// sized; proceeding would render an invisible result with no error signal
	ErrContainerNotReady = errors.New("container not ready")

	// ErrPanoramaUnavailable is the expected business outcome when no
	// panorama exists within the search radius of the requested position
	ErrPanoramaUnavailable = errors.New("no panorama within search radius")

	// ErrStreetViewUnsupported is returned by providers without a panorama
	// subsystem
	ErrStreetViewUnsupported = errors.New("street view not supported")
)

// Marker is the engine-side record of a native marker handle
type Marker struct {
	Kind string     `json:"kind"`
	Pos  geo.LatLng `json:"pos"`
}

// PanoramaRef identifies a renderable panorama resolved near a position
type PanoramaRef struct {
	ID  string     `json:"id"`
	Pos geo.LatLng `json:"pos"`
}

// InitOptions configure map construction
type InitOptions struct {
	Center    geo.MapState
	Satellite bool
}

// Adapter is the per-provider capability contract. One adapter instance is
// bound to one pane for the lifetime of that pane's provider selection.
type Adapter interface {
	// ID returns the provider identifier
	ID() string

	// Pane returns the owning pane id
	Pane() string

	// EnsureReady reports whether the SDK can be used, kicking off any
	// asynchronous preparation (module load) as a side effect
	EnsureReady() bool

	// Initialize constructs the native map; returns ErrNotReady while the
	// SDK or the container is still unavailable, and the caller retries
	Initialize(opts InitOptions) error

	// Initialized reports whether the native map exists
	Initialized() bool

	// SetCamera writes the camera, converting zoom to the native scale.
	// Writing the current camera state is a no-op so programmatic syncs do
	// not re-trigger the provider's own change events.
	SetCamera(state geo.MapState)

	// Camera returns the last known native camera, in agnostic zoom
	Camera() geo.MapState

	// SetMapType toggles satellite imagery
	SetMapType(satellite bool)

	// PlaceMarker creates a marker, replacing any previous marker of the
	// same logical kind
	PlaceMarker(kind string, pos geo.LatLng) *Marker

	// RemoveMarker removes the marker of the given kind, if any
	RemoveMarker(kind string)

	// MarkerCount returns the number of live markers
	MarkerCount() int

	// DrawPolyline creates or redraws a polyline overlay
	DrawPolyline(id string, path []geo.LatLng)

	// DrawPolygon creates or redraws a polygon overlay
	DrawPolygon(id string, path []geo.LatLng)

	// ShowLabel creates or moves a text label overlay; dismissible labels
	// render a close control on the host side
	ShowLabel(id string, pos geo.LatLng, text string, dismissible bool)

	// RemoveOverlay removes a polyline, polygon, or label by id
	RemoveOverlay(id string)

	// OverlayCount returns the number of live overlays
	OverlayCount() int

	// Subscribe routes host events of the given kind for this pane to fn,
	// returning an unsubscribe function. Pointer events (click, mouse-move,
	// right-click) are only attached on the host while subscribed.
	Subscribe(kind string, fn func(bridge.Event)) func()

	// SupportsStreetView reports whether the provider has a panorama
	// subsystem
	SupportsStreetView() bool

	// ResolvePanorama finds a renderable panorama at or near pos. The
	// result may be StatusNotFound, which is an expected business outcome.
	ResolvePanorama(pos geo.LatLng) *bridge.Pending

	// EnterStreetView binds the panoramic view to the panorama container
	EnterStreetView(ref PanoramaRef) error

	// ExitStreetView closes the panoramic view; whether the native
	// instance survives for reuse is provider-specific
	ExitStreetView()

	// SetWalker creates or repositions the directional indicator, rotated
	// about its bottom-center anchor. At most one walker exists per pane.
	SetWalker(pos geo.LatLng, headingDeg float64)

	// ClearWalker removes the directional indicator, if any
	ClearWalker()

	// HasWalker reports whether the walker overlay exists
	HasWalker() bool

	// SetCadastralLayer toggles the cadastral overlay layer where the
	// provider supports one; a no-op elsewhere
	SetCadastralLayer(on bool)

	// Relayout tells the provider to re-measure its container and
	// re-center, required after the mini-map CSS transition settles
	Relayout(center geo.MapState)

	// Teardown releases every native handle and listener this adapter owns
	Teardown()
}

// New constructs the adapter for the given provider id, bound to one pane
func New(providerID, paneID string, br *bridge.Bridge) (Adapter, error) {
	switch providerID {
	case common.ProviderAtlas:
		return newAtlas(paneID, br), nil
	case common.ProviderRoadview:
		return newRoadview(paneID, br), nil
	case common.ProviderVista:
		return newVista(paneID, br), nil
	}
	return nil, errors.New("unknown provider: " + providerID)
}
