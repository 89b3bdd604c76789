// Package anomaly inspects validated events and emits risk tags.
// Detection order is fixed and deterministic: event type, timestamp,
// amount, location, device IP. Rules are independent; each appends at most
// one tag and none short-circuits the others.
package anomaly

import (
	"time"

	"riskgate/internal/event"
	"riskgate/internal/risk"
)

// Detector evaluates the fixed anomaly rules against a rule set.
type Detector struct {
	now func() time.Time
}

// New creates a Detector using the wall clock.
func New() *Detector {
	return &Detector{now: time.Now}
}

// NewAt creates a Detector with an injected clock. For tests.
func NewAt(now func() time.Time) *Detector {
	return &Detector{now: now}
}

// Detect returns the ordered anomaly tags for a validated event.
func (d *Detector) Detect(e *event.StructuredEvent, rules *risk.Rules) []risk.Tag {
	var tags []risk.Tag

	// 1. Event type in the suspicious vocabulary.
	if rules.IsSuspiciousEvent(e.EventType) {
		tags = append(tags, risk.SuspiciousEventTag(e.EventType))
	}

	// 2. Timestamp: unparseable wins over staleness; the staleness check is
	// the only rule skipped on a parse failure.
	if ts, err := parseTimestamp(e.Timestamp); err != nil {
		tags = append(tags, risk.TagInvalidTimestamp)
	} else if d.now().UTC().Sub(ts) > rules.StaleAfter {
		tags = append(tags, risk.TagStaleEvent)
	}

	// 3. Amount above the high-value threshold.
	if e.Data.Amount != nil && *e.Data.Amount > rules.HighValueThreshold {
		tags = append(tags, risk.HighValueTag(*e.Data.Amount))
	}

	// 4. Exact-match suspicious location.
	if rules.IsSuspiciousLocation(e.Data.Location) {
		tags = append(tags, risk.SuspiciousLocationTag(e.Data.Location))
	}

	// 5. Device IP equal to the source IP raises ip_mismatch. Matching IPs
	// are the flagged case; this inversion is product behavior and must not
	// be "corrected".
	if e.Data.DeviceInfo != nil && e.Data.DeviceInfo.IPAddress == e.Data.IPAddress {
		tags = append(tags, risk.TagIPMismatch)
	}

	return tags
}

// parseTimestamp accepts RFC 3339 and the common offset-less ISO-8601 form.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err2 := time.Parse("2006-01-02T15:04:05", s)
	if err2 == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}
