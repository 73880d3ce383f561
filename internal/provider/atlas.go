package provider

import (
	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
)

// Atlas is the satellite/road map provider. Its SDK uses the common 3-20 zoom
// scale directly and rebuilds the panoramic view on every street-view entry.
type Atlas struct {
	base
}

func newAtlas(pane string, br *bridge.Bridge) *Atlas {
	return &Atlas{base: newBase(common.ProviderAtlas, pane, br)}
}

// SupportsStreetView implements Adapter
func (a *Atlas) SupportsStreetView() bool { return true }

// ResolvePanorama implements Adapter. The atlas SDK snaps the panoramic view
// to the nearest coverage itself, so resolution succeeds immediately at the
// requested position.
func (a *Atlas) ResolvePanorama(pos geo.LatLng) *bridge.Pending {
	return bridge.Resolved(bridge.Result{
		Status:  bridge.StatusOK,
		Payload: map[string]any{"lat": pos.Lat, "lng": pos.Lng},
	})
}

// EnterStreetView implements Adapter; the panoramic view is created fresh on
// every entry
func (a *Atlas) EnterStreetView(ref PanoramaRef) error {
	if c, ok := a.br.ContainerFor(a.pane, ContainerPanorama); !ok || !c.Usable() {
		return ErrContainerNotReady
	}
	a.send(OpPanoCreate, map[string]any{"id": ref.ID, "lat": ref.Pos.Lat, "lng": ref.Pos.Lng})
	return nil
}

// ExitStreetView implements Adapter; the instance is destroyed outright
func (a *Atlas) ExitStreetView() {
	a.send(OpPanoDestroy, nil)
}
