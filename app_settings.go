package main

import (
	"fmt"
	"log"

	"mapsync-desktop/internal/common"
	"mapsync-desktop/internal/config"
	"mapsync-desktop/internal/geo"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Validate settings
	if settings.DefaultZoom < geo.MinZoom || settings.DefaultZoom > geo.MaxZoom {
		return fmt.Errorf("default zoom must be between %d and %d", geo.MinZoom, geo.MaxZoom)
	}
	for _, pd := range settings.Panes {
		if !common.KnownProvider(pd.Provider) {
			return fmt.Errorf("unknown provider: %s", pd.Provider)
		}
	}

	// Save to disk
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	// Update app state
	a.settings = settings

	// Note: pane layout changes require app restart to take effect
	log.Printf("Settings saved. Pane defaults will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// SaveMapPosition saves the current camera for session persistence
// Called on app close to remember the last viewed location
func (a *App) SaveMapPosition() error {
	state := a.store.Camera()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.settings.DefaultCenterLat = state.Lat
	a.settings.DefaultCenterLng = state.Lng
	a.settings.DefaultZoom = state.Zoom

	if err := config.SaveSettings(a.settings); err != nil {
		return err
	}

	log.Printf("Saved map position: lat=%.6f, lng=%.6f, zoom=%d", state.Lat, state.Lng, state.Zoom)
	return nil
}
