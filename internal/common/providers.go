package common

// Provider identifier constants for consistent naming across the application
const (
	// ProviderAtlas is the satellite/road map provider
	ProviderAtlas = "atlas"

	// ProviderRoadview is the road-view provider (inverted native zoom levels)
	ProviderRoadview = "roadview"

	// ProviderVista is the street-layer/panorama provider
	ProviderVista = "vista"

	// DisplayNameAtlas is the human-readable name shown in the UI
	DisplayNameAtlas = "Atlas Maps"

	// DisplayNameRoadview is the human-readable name shown in the UI
	DisplayNameRoadview = "RoadView Maps"

	// DisplayNameVista is the human-readable name shown in the UI
	DisplayNameVista = "Vista Maps"
)

// KnownProvider reports whether id names one of the supported providers
func KnownProvider(id string) bool {
	switch id {
	case ProviderAtlas, ProviderRoadview, ProviderVista:
		return true
	}
	return false
}

// DisplayName returns the human-readable name for a provider id
func DisplayName(id string) string {
	switch id {
	case ProviderAtlas:
		return DisplayNameAtlas
	case ProviderRoadview:
		return DisplayNameRoadview
	case ProviderVista:
		return DisplayNameVista
	}
	return id
}
