package provider

import (
	"log"
	"sync"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/geo"
)

// Roadview is the road-view provider. Its SDK counts zoom on an inverted,
// clamped integer level scale and needs an explicit asynchronous module load
// before any map call works. Its panoramic instance survives close: exiting
// street view only hides it and re-entry reuses it.
type Roadview struct {
	base

	modMu     sync.Mutex
	moduleReq *bridge.Pending
	loaded    bool

	panoMu      sync.Mutex
	panoCreated bool
}

func newRoadview(pane string, br *bridge.Bridge) *Roadview {
	r := &Roadview{base: newBase(common.ProviderRoadview, pane, br)}
	r.zoomToNative = geo.ToProviderLevel
	r.zoomFromNative = geo.FromProviderLevel
	return r
}

// EnsureReady implements Adapter. Beyond the SDK global, readiness requires
// the module-load completion callback; the poll tick only kicks the load off.
func (r *Roadview) EnsureReady() bool {
	if !r.br.SDKReady(r.provider) {
		return false
	}

	r.modMu.Lock()
	defer r.modMu.Unlock()
	if r.loaded {
		return true
	}
	if r.moduleReq == nil {
		log.Printf("[Provider:%s] Requesting module load", r.provider)
		req := r.br.Request(bridge.Command{
			Pane:     r.pane,
			Provider: r.provider,
			Op:       OpModuleLoad,
		})
		r.moduleReq = req
		go r.awaitModule(req)
	}
	return false
}

func (r *Roadview) awaitModule(req *bridge.Pending) {
	res := <-req.Done()

	r.modMu.Lock()
	defer r.modMu.Unlock()
	if r.moduleReq != req {
		return
	}
	r.moduleReq = nil
	if res.Status == bridge.StatusOK {
		r.loaded = true
		log.Printf("[Provider:%s] Module loaded", r.provider)
	} else {
		// Next poll tick retries
		log.Printf("[Provider:%s] Module load failed: %s", r.provider, res.Error)
	}
}

// SupportsStreetView implements Adapter
func (r *Roadview) SupportsStreetView() bool { return true }

// ResolvePanorama implements Adapter
func (r *Roadview) ResolvePanorama(pos geo.LatLng) *bridge.Pending {
	return r.br.Request(bridge.Command{
		Pane:     r.pane,
		Provider: r.provider,
		Op:       OpPanoResolve,
		Args:     map[string]any{"lat": pos.Lat, "lng": pos.Lng},
	})
}

// EnterStreetView implements Adapter. The first entry creates the panoramic
// instance; later entries unhide and move the surviving one.
func (r *Roadview) EnterStreetView(ref PanoramaRef) error {
	if c, ok := r.br.ContainerFor(r.pane, ContainerPanorama); !ok || !c.Usable() {
		return ErrContainerNotReady
	}

	r.panoMu.Lock()
	created := r.panoCreated
	r.panoCreated = true
	r.panoMu.Unlock()

	args := map[string]any{"id": ref.ID, "lat": ref.Pos.Lat, "lng": ref.Pos.Lng}
	if !created {
		r.send(OpPanoCreate, args)
		return nil
	}
	r.send(OpPanoShow, nil)
	r.send(OpPanoMove, args)
	return nil
}

// ExitStreetView implements Adapter; the instance stays alive for reuse
func (r *Roadview) ExitStreetView() {
	r.send(OpPanoHide, nil)
}

// Teardown implements Adapter. The surviving panoramic instance dies with the
// map, and an in-flight module load is abandoned; the loaded flag survives
// because the module belongs to the SDK, not to this pane.
func (r *Roadview) Teardown() {
	r.modMu.Lock()
	req := r.moduleReq
	r.moduleReq = nil
	r.modMu.Unlock()
	if req != nil {
		req.Cancel()
	}

	r.panoMu.Lock()
	r.panoCreated = false
	r.panoMu.Unlock()

	r.base.Teardown()
}
