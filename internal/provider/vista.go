package provider

import (
	"time"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
)

// PanoSearchRadiusM bounds the nearest-panorama lookup; outside it the vista
// SDK reports no coverage, which is a normal outcome rather than an error
const PanoSearchRadiusM = 100

// Vista is the street-layer/panorama provider. Street-view entry needs an
// asynchronous nearest-panorama-id lookup first, and the provider exposes a
// cadastral overlay layer the others lack.
type Vista struct {
	base
	lookups *lookupCache
}

func newVista(pane string, br *bridge.Bridge) *Vista {
	return &Vista{
		base:    newBase(common.ProviderVista, pane, br),
		lookups: newLookupCache(5 * time.Minute),
	}
}

// SupportsStreetView implements Adapter
func (v *Vista) SupportsStreetView() bool { return true }

// SetCadastralLayer implements Adapter
func (v *Vista) SetCadastralLayer(on bool) {
	v.send(OpCadastral, map[string]any{"on": on})
}

// ResolvePanorama implements Adapter. Lookups are memoized briefly because
// repeated clicks around the same spot are common while hunting for coverage.
func (v *Vista) ResolvePanorama(pos geo.LatLng) *bridge.Pending {
	if res, ok := v.lookups.get(pos); ok {
		return bridge.Resolved(res)
	}

	req := v.br.Request(bridge.Command{
		Pane:     v.pane,
		Provider: v.provider,
		Op:       OpPanoResolve,
		Args:     map[string]any{"lat": pos.Lat, "lng": pos.Lng, "radius": PanoSearchRadiusM},
	})

	proxy := bridge.NewPending(req.Cancel)
	go func() {
		res := <-req.Done()
		// Not-found is cacheable too: no coverage will not appear within
		// the cache TTL
		if res.Status == bridge.StatusOK || res.Status == bridge.StatusNotFound {
			v.lookups.put(pos, res)
		}
		proxy.Complete(res)
	}()
	return proxy
}

// EnterStreetView implements Adapter; like atlas, the view is recreated on
// every entry
func (v *Vista) EnterStreetView(ref PanoramaRef) error {
	if c, ok := v.br.ContainerFor(v.pane, ContainerPanorama); !ok || !c.Usable() {
		return ErrContainerNotReady
	}
	v.send(OpPanoCreate, map[string]any{"id": ref.ID, "lat": ref.Pos.Lat, "lng": ref.Pos.Lng})
	return nil
}

// ExitStreetView implements Adapter
func (v *Vista) ExitStreetView() {
	v.send(OpPanoDestroy, nil)
}
