package main

import (
	"context"
	"fmt"
	"log"
	"os"
	goruntime "runtime"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"mapsync-desktop/internal/bridge"
	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/config"
	"mapsync-desktop/internal/geo"
	"mapsync-desktop/internal/pane"
	"mapsync-desktop/internal/statesync"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// PaneInfo is the pane snapshot handed to the frontend
type PaneInfo struct {
	ID               string `json:"id"`
	Provider         string `json:"provider"`
	DisplayName      string `json:"displayName"`
	Satellite        bool   `json:"satellite"`
	Mode             string `json:"mode"`
	StreetViewActive bool   `json:"streetViewActive"`
}

// App struct
type App struct {
	ctx      context.Context
	settings *config.UserSettings
	br       *bridge.Bridge
	store    *statesync.Store
	panes    []*pane.Pane
	byID     map[string]*pane.Pane
	devSrv   *bridge.DevServer
	phClient posthog.Client
	timing   common.Timing

	mu             sync.Mutex
	devMode        bool // Enable verbose logging in dev mode only
	fullscreenPane string
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	store := statesync.NewStore(geo.MapState{
		Lat:  settings.DefaultCenterLat,
		Lng:  settings.DefaultCenterLng,
		Zoom: settings.DefaultZoom,
	})

	return &App{
		settings: settings,
		br:       bridge.New(nil),
		store:    store,
		byID:     make(map[string]*pane.Pane),
		phClient: phClient,
		timing:   common.DefaultTiming(),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.br.SetSender(bridge.NewEmitSender(ctx))

	// Bring up one pane per configured slot
	for i, pd := range a.settings.Panes {
		id := fmt.Sprintf("pane-%d", i)
		p, err := pane.New(id, pane.Config{Provider: pd.Provider, Satellite: pd.Satellite}, a.br, a.store, a.timing)
		if err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to create %s: %v", id, err))
			continue
		}
		if err := p.Open(); err != nil {
			wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to open %s: %v", id, err))
			continue
		}
		a.panes = append(a.panes, p)
		a.byID[id] = p
	}
	wailsRuntime.LogInfo(ctx, fmt.Sprintf("Engine started with %d panes", len(a.panes)))

	// Optional websocket bridge for driving the engine from a plain browser
	// page during development
	if a.settings.DevBridge || a.devMode {
		a.devSrv = bridge.NewDevServer(a.br)
		if err := a.devSrv.Start(); err != nil {
			log.Printf("Dev bridge unavailable: %v", err)
			a.devSrv = nil
		}
	}

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
		"panes":   len(a.panes),
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	for _, p := range a.panes {
		p.Close()
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

func (a *App) paneByID(id string) (*pane.Pane, error) {
	p, ok := a.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown pane: %s", id)
	}
	return p, nil
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

// ===================
// SDK host reporting
// ===================

// DispatchMapEvent routes one SDK event from the frontend into the engine
func (a *App) DispatchMapEvent(ev bridge.Event) {
	a.emitLog(fmt.Sprintf("event %s/%s", ev.Pane, ev.Kind))
	a.br.Dispatch(ev)
}

// ReportSDKReady records that a provider SDK global finished loading; the
// pane readiness polls pick it up on their next tick
func (a *App) ReportSDKReady(provider string) {
	if !common.KnownProvider(provider) {
		log.Printf("Ignoring readiness for unknown provider %q", provider)
		return
	}
	a.br.MarkSDKReady(provider)
}

// ReportContainerMounted records a pane container element and its measured
// size; zero-sized containers keep the owning effect retrying
func (a *App) ReportContainerMounted(paneID, role string, width, height int) {
	a.br.MarkContainer(paneID, role, width, height)
}

// ReportModuleLoaded completes an asynchronous module-load request; a
// convenience wrapper for hosts that track the request sequence outside the
// generic event path
func (a *App) ReportModuleLoaded(paneID, providerID string, seq int64, ok bool, errMsg string) {
	status := bridge.StatusOK
	if !ok {
		status = bridge.StatusFailed
	}
	a.br.Dispatch(bridge.Event{
		Pane:     paneID,
		Provider: providerID,
		Kind:     bridge.EventRequestResult,
		Seq:      seq,
		Payload:  map[string]any{"status": status, "error": errMsg},
	})
}

// ===================
// Pane control surface
// ===================

// GetPanes returns a snapshot of every pane for the frontend
func (a *App) GetPanes() []PaneInfo {
	infos := make([]PaneInfo, 0, len(a.panes))
	for _, p := range a.panes {
		cfg := p.Config()
		infos = append(infos, PaneInfo{
			ID:               p.ID(),
			Provider:         cfg.Provider,
			DisplayName:      common.DisplayName(cfg.Provider),
			Satellite:        cfg.Satellite,
			Mode:             string(p.Mode()),
			StreetViewActive: p.StreetViewActive(),
		})
	}
	return infos
}

// GetMapState returns the shared camera state
func (a *App) GetMapState() geo.MapState {
	return a.store.Camera()
}

// SetMapState publishes a camera jump from the host UI (search result
// navigation, bookmark) into the shared state; every pane reconciles to it
func (a *App) SetMapState(lat, lng float64, zoom int) {
	a.store.PublishCamera("app", geo.MapState{Lat: lat, Lng: lng, Zoom: zoom})
}

// SetPaneProvider switches a pane to another provider, rebuilding its map
func (a *App) SetPaneProvider(paneID, providerID string, satellite bool) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	if err := p.SetProvider(pane.Config{Provider: providerID, Satellite: satellite}); err != nil {
		return err
	}
	a.TrackEvent("provider_switched", map[string]interface{}{
		"pane":     paneID,
		"provider": providerID,
	})
	return nil
}

// SetSatellite toggles satellite imagery on one pane
func (a *App) SetSatellite(paneID string, on bool) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	p.SetSatellite(on)
	return nil
}

// SelectMode is the toolbar mode-select command
func (a *App) SelectMode(paneID, mode string) error {
	if !common.ValidMode(mode) {
		return fmt.Errorf("unknown mode: %s", mode)
	}
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	if err := p.SelectMode(common.Mode(mode)); err != nil {
		return err
	}
	a.TrackEvent("mode_selected", map[string]interface{}{
		"pane": paneID,
		"mode": mode,
	})
	return nil
}

// ToggleCadastralLayer is the toolbar cadastral-layer command
func (a *App) ToggleCadastralLayer(paneID string, on bool) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	p.SetCadastralLayer(on)
	return nil
}

// ClearMeasurements is the toolbar clear-all command
func (a *App) ClearMeasurements(paneID string) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	p.ClearMeasurements()
	return nil
}

// SetSearchResult places the search marker on every pane
func (a *App) SetSearchResult(lat, lng float64) {
	pos := geo.LatLng{Lat: lat, Lng: lng}
	for _, p := range a.panes {
		p.SetSearchResult(&pos)
	}
}

// ClearSearchResult removes the search marker from every pane
func (a *App) ClearSearchResult() {
	for _, p := range a.panes {
		p.SetSearchResult(nil)
	}
}

// EnterStreetView starts the street-view entry sequence on one pane; used by
// the street-layer click path on the host side
func (a *App) EnterStreetView(paneID string, lat, lng float64) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	p.EnterStreetView(geo.LatLng{Lat: lat, Lng: lng})
	a.TrackEvent("street_view_entered", map[string]interface{}{
		"pane": paneID,
	})
	return nil
}

// ExitStreetView closes street view on one pane
func (a *App) ExitStreetView(paneID string) error {
	p, err := a.paneByID(paneID)
	if err != nil {
		return err
	}
	p.ExitStreetView()
	return nil
}

// SetFullscreenPane expands one pane to fill the window, or restores the
// split layout when id is empty; every pane re-measures after the transition
func (a *App) SetFullscreenPane(paneID string) error {
	if paneID != "" {
		if _, err := a.paneByID(paneID); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.fullscreenPane = paneID
	a.mu.Unlock()

	for _, p := range a.panes {
		p.RefreshLayout()
	}
	return nil
}

// GetFullscreenPane returns the currently expanded pane id, or empty
func (a *App) GetFullscreenPane() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fullscreenPane
}

// GetProviderKeys hands the frontend the SDK credentials from the
// environment; how the keys are provisioned is outside this application
func (a *App) GetProviderKeys() map[string]string {
	return map[string]string{
		common.ProviderAtlas:    os.Getenv("ATLAS_SDK_KEY"),
		common.ProviderRoadview: os.Getenv("ROADVIEW_SDK_KEY"),
		common.ProviderVista:    os.Getenv("VISTA_SDK_KEY"),
	}
}

// GetDevBridgeURL returns the websocket URL of the dev bridge, or empty when
// it is not running
func (a *App) GetDevBridgeURL() string {
	if a.devSrv == nil {
		return ""
	}
	return a.devSrv.URL()
}
