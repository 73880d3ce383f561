package geo

import "math"

const (
	// EarthRadiusM is the mean Earth radius used for all distance and area math
	EarthRadiusM = 6371000.0

	// CameraTolerance is the lat/lng delta (degrees) below which two camera
	// positions are considered identical for reconciliation purposes
	CameraTolerance = 1e-5

	// PanoramaTolerance is the lat/lng delta (degrees) below which two
	// street-view positions are considered the same panorama location
	PanoramaTolerance = 1e-4
)

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MapState is the provider-agnostic camera descriptor shared by all panes.
// Zoom is always kept in the common 3-20 range regardless of the active provider.
type MapState struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// Position returns the camera center as a LatLng
func (s MapState) Position() LatLng {
	return LatLng{Lat: s.Lat, Lng: s.Lng}
}

// NearlyEqual reports whether two positions are within tol degrees of each
// other on both axes
func NearlyEqual(a, b LatLng, tol float64) bool {
	return math.Abs(a.Lat-b.Lat) < tol && math.Abs(a.Lng-b.Lng) < tol
}

// SameCamera reports whether two camera states are indistinguishable for
// reconciliation: positions within CameraTolerance and identical zoom
func SameCamera(a, b MapState) bool {
	return a.Zoom == b.Zoom && NearlyEqual(a.Position(), b.Position(), CameraTolerance)
}

// HaversineM returns the great-circle distance between two points in meters
func HaversineM(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLng := (b.Lng - a.Lng) * math.Pi / 180.0

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathLengthM returns the cumulative Haversine length of a polyline in meters
func PathLengthM(points []LatLng) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineM(points[i-1], points[i])
	}
	return total
}

// PolygonAreaM2 returns the area of a polygon on the sphere in square meters.
// The ring is closed implicitly; fewer than 3 vertices yield zero.
// Uses the spherical excess formula over the ring's edges, which matches what
// the provider SDKs report for the zoom ranges this application works at.
func PolygonAreaM2(points []LatLng) float64 {
	if len(points) < 3 {
		return 0
	}

	var sum float64
	for i := range points {
		p1 := points[i]
		p2 := points[(i+1)%len(points)]
		lng1 := p1.Lng * math.Pi / 180.0
		lng2 := p2.Lng * math.Pi / 180.0
		lat1 := p1.Lat * math.Pi / 180.0
		lat2 := p2.Lat * math.Pi / 180.0
		sum += (lng2 - lng1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}

	return math.Abs(sum * EarthRadiusM * EarthRadiusM / 2)
}
