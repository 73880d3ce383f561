package config

import (
	"os"
	"path/filepath"
	"testing"

	"mapsync-desktop/internal/common"
)

func TestLoadSettingsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	settings, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.DefaultZoom != 15 {
		t.Errorf("default zoom = %d, want 15", settings.DefaultZoom)
	}
	if len(settings.Panes) != 2 {
		t.Fatalf("default panes = %d, want 2", len(settings.Panes))
	}
	if settings.Panes[0].Provider != common.ProviderAtlas {
		t.Errorf("first pane provider = %s", settings.Panes[0].Provider)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := DefaultSettings()
	in.DefaultCenterLat = 35.1796
	in.DefaultCenterLng = 129.0756
	in.DefaultZoom = 12
	in.Theme = "dark"
	in.Panes = []PaneDefaults{{Provider: common.ProviderRoadview, Satellite: true}}

	if err := SaveSettings(in); err != nil {
		t.Fatal(err)
	}

	out, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if out.DefaultCenterLat != in.DefaultCenterLat || out.DefaultZoom != 12 || out.Theme != "dark" {
		t.Errorf("round trip lost fields: %+v", out)
	}
	if len(out.Panes) != 1 || out.Panes[0].Provider != common.ProviderRoadview || !out.Panes[0].Satellite {
		t.Errorf("round trip lost panes: %+v", out.Panes)
	}
}

func TestLoadSettingsMergesPartialFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".mapsync", "desktop", "settings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	partial := `{"theme": "light", "panes": [{"provider": "not-a-provider"}]}`
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.Theme != "light" {
		t.Errorf("theme = %s, want the file's value", settings.Theme)
	}
	if settings.DefaultZoom != 15 {
		t.Errorf("missing zoom must fall back to the default, got %d", settings.DefaultZoom)
	}
	if !common.KnownProvider(settings.Panes[0].Provider) {
		t.Errorf("unknown provider must be replaced, got %s", settings.Panes[0].Provider)
	}
}

func TestLoadSettingsRejectsCorruptFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".mapsync", "desktop", "settings")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(); err == nil {
		t.Error("corrupt settings must surface an error")
	}
}
