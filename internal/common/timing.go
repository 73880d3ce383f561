package common

import "time"

// Timing collects the delay constants the engine schedules around. The values
// encode empirically required settle times for the third-party layout and
// transition behavior; tests shrink them, production uses the defaults.
type Timing struct {
	// PollInterval is the SDK-readiness polling cadence
	PollInterval time.Duration

	// GuardWindow is how long the programmatic-update guard stays up around
	// a camera write, and how long until a dragging flag auto-clears after
	// a programmatic move
	GuardWindow time.Duration

	// LayoutSettle matches the CSS transition of the mini-map layout swap;
	// providers must re-measure their containers only after it completes
	LayoutSettle time.Duration

	// ContainerRetry is the wait before re-checking a missing or zero-sized
	// container element
	ContainerRetry time.Duration

	// WalkerSettle is the wait before placing the directional indicator on
	// a freshly re-centered mini-map
	WalkerSettle time.Duration

	// PopupLifetime is how long a click-location popup stays up before
	// dismissing itself
	PopupLifetime time.Duration
}

// DefaultTiming returns the documented tuning values
func DefaultTiming() Timing {
	return Timing{
		PollInterval:   300 * time.Millisecond,
		GuardWindow:    200 * time.Millisecond,
		LayoutSettle:   350 * time.Millisecond,
		ContainerRetry: 400 * time.Millisecond,
		WalkerSettle:   150 * time.Millisecond,
		PopupLifetime:  1500 * time.Millisecond,
	}
}
