package geo

// Zoom range shared by every pane, and the narrower inverted level range used
// natively by the road-view provider. The two bands do not line up exactly:
// the inversion is lossless only where they overlap (see the tests for the
// boundary values that collapse onto the clamps).
const (
	MinZoom = 3
	MaxZoom = 20

	MinProviderLevel = 1
	MaxProviderLevel = 14
)

// ClampZoom clamps a provider-agnostic zoom into the common 3-20 band
func ClampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// ToProviderLevel converts a provider-agnostic zoom to the road-view
// provider's inverted level scale: level = clamp(20 - z, 1, 14)
func ToProviderLevel(zoom int) int {
	level := MaxZoom - zoom
	if level < MinProviderLevel {
		return MinProviderLevel
	}
	if level > MaxProviderLevel {
		return MaxProviderLevel
	}
	return level
}

// FromProviderLevel converts a native inverted level back to the
// provider-agnostic zoom: zoom = clamp(20 - level, 3, 20)
func FromProviderLevel(level int) int {
	return ClampZoom(MaxZoom - level)
}
