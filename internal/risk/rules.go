package risk

import "time"

// Rules is the immutable rule set shared by the anomaly detector and the
// classifier. Hot-reload builds a fresh Rules value and swaps it atomically;
// a Rules instance is never mutated after construction.
type Rules struct {
	// SuspiciousEvents maps event types to their base severity.
	SuspiciousEvents map[string]Level
	// HighValueThreshold is the amount above which an event is tagged high_value.
	HighValueThreshold float64
	// StaleAfter is the age beyond which an event is tagged stale_event.
	StaleAfter time.Duration
	// SuspiciousLocations are exact-match location strings that raise a tag.
	SuspiciousLocations []string
}

// DefaultRules returns the built-in rule set.
func DefaultRules() *Rules {
	return &Rules{
		SuspiciousEvents: map[string]Level{
			"unauthorized_access": High,
			"data_breach":         Critical,
			"system_compromise":   Critical,
			"failed_login":        Medium,
			"suspicious_activity": High,
		},
		HighValueThreshold:  10000.00,
		StaleAfter:          time.Hour,
		SuspiciousLocations: []string{"Unknown", "High Risk Country"},
	}
}

// IsSuspiciousEvent reports whether the event type is in the vocabulary.
func (r *Rules) IsSuspiciousEvent(eventType string) bool {
	_, ok := r.SuspiciousEvents[eventType]
	return ok
}

// BaseSeverity returns the base severity for an event type, if any.
func (r *Rules) BaseSeverity(eventType string) (Level, bool) {
	lvl, ok := r.SuspiciousEvents[eventType]
	return lvl, ok
}

// IsSuspiciousLocation reports whether loc exactly matches a flagged location.
func (r *Rules) IsSuspiciousLocation(loc string) bool {
	for _, l := range r.SuspiciousLocations {
		if loc == l {
			return true
		}
	}
	return false
}
