package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mapsync-desktop/internal/common"
)

// PaneDefaults selects the provider a pane starts with
type PaneDefaults struct {
	Provider  string `json:"provider"`
	Satellite bool   `json:"satellite"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Default camera
	DefaultCenterLat float64 `json:"defaultCenterLat"`
	DefaultCenterLng float64 `json:"defaultCenterLng"`
	DefaultZoom      int     `json:"defaultZoom"`

	// Startup pane configuration, left to right
	Panes []PaneDefaults `json:"panes"`

	// UI preferences
	Theme           string `json:"theme"` // "light", "dark", "system"
	ShowCoordinates bool   `json:"showCoordinates"`

	// Development
	DevBridge bool `json:"devBridge"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		DefaultCenterLat: 37.5665, // Seoul city hall
		DefaultCenterLng: 126.9780,
		DefaultZoom:      15,
		Panes: []PaneDefaults{
			{Provider: common.ProviderAtlas, Satellite: true},
			{Provider: common.ProviderVista, Satellite: false},
		},
		Theme:           "system",
		ShowCoordinates: false,
		DevBridge:       false,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	baseDir := filepath.Join(homeDir, ".mapsync", "desktop", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.DefaultZoom == 0 {
		settings.DefaultZoom = defaults.DefaultZoom
	}
	if settings.DefaultCenterLat == 0 && settings.DefaultCenterLng == 0 {
		settings.DefaultCenterLat = defaults.DefaultCenterLat
		settings.DefaultCenterLng = defaults.DefaultCenterLng
	}
	if len(settings.Panes) == 0 {
		settings.Panes = defaults.Panes
	}
	for i := range settings.Panes {
		if !common.KnownProvider(settings.Panes[i].Provider) {
			settings.Panes[i].Provider = defaults.Panes[i%len(defaults.Panes)].Provider
		}
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
