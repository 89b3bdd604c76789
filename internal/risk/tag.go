package risk

import (
	"strconv"
	"strings"
)

// Tag is a named anomaly signal. Value-bearing tags embed the offending
// value after a colon, e.g. "high_value:15000".
type Tag string

// Tag kinds (the part before the colon).
const (
	KindSuspiciousEvent    = "suspicious_event"
	KindStaleEvent         = "stale_event"
	KindInvalidTimestamp   = "invalid_timestamp"
	KindHighValue          = "high_value"
	KindSuspiciousLocation = "suspicious_location"
	KindIPMismatch         = "ip_mismatch"
)

// Value-less tags.
const (
	TagStaleEvent       Tag = KindStaleEvent
	TagInvalidTimestamp Tag = KindInvalidTimestamp
	TagIPMismatch       Tag = KindIPMismatch
)

// SuspiciousEventTag tags an event type from the suspicious vocabulary.
func SuspiciousEventTag(eventType string) Tag {
	return Tag(KindSuspiciousEvent + ":" + eventType)
}

// HighValueTag tags an amount above the high-value threshold.
func HighValueTag(amount float64) Tag {
	return Tag(KindHighValue + ":" + strconv.FormatFloat(amount, 'f', -1, 64))
}

// SuspiciousLocationTag tags a flagged location.
func SuspiciousLocationTag(loc string) Tag {
	return Tag(KindSuspiciousLocation + ":" + loc)
}

// Kind returns the tag's kind, stripping any embedded value.
func (t Tag) Kind() string {
	if i := strings.IndexByte(string(t), ':'); i >= 0 {
		return string(t[:i])
	}
	return string(t)
}
