package common

// Mode is the current exclusive interaction mode of a pane
type Mode string

const (
	// ModeDefault is plain map navigation
	ModeDefault Mode = "default"

	// ModeStreetViewPick arms the next map click to open street view there
	ModeStreetViewPick Mode = "street_view_pick"

	// ModeDistance is point-by-point distance measurement
	ModeDistance Mode = "distance"

	// ModeArea is point-by-point area measurement
	ModeArea Mode = "area"
)

// Measuring reports whether the mode is one of the measurement modes
func (m Mode) Measuring() bool {
	return m == ModeDistance || m == ModeArea
}

// ValidMode reports whether s names a known interaction mode
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeDefault, ModeStreetViewPick, ModeDistance, ModeArea:
		return true
	}
	return false
}
