package risk

// Action ids emitted by Route. "risk_alert/medium" is routable but has no
// registered handler; dispatching it yields an unknown_action result.
const (
	ActionAlertCritical = "risk_alert/critical"
	ActionAlertHigh     = "risk_alert/high"
	ActionAlertMedium   = "risk_alert/medium"
	ActionAlertGeneral  = "risk_alert"
	ActionEscalate      = "crm/escalate"
)

// scoringKinds are the tag kinds that contribute to the anomaly count.
// stale_event, invalid_timestamp and ip_mismatch are informational only and
// can never raise risk above low on their own.
var scoringKinds = map[string]bool{
	KindSuspiciousEvent:    true,
	KindHighValue:          true,
	KindSuspiciousLocation: true,
}

// Classify maps anomaly tags and the event type to a risk level.
// Decision order is fixed: no tags → low; critical base severity wins over
// everything else; otherwise the count of scoring tags decides.
func (r *Rules) Classify(tags []Tag, eventType string) Level {
	if len(tags) == 0 {
		return Low
	}

	if base, ok := r.BaseSeverity(eventType); ok && base == Critical {
		return Critical
	}

	n := 0
	for _, t := range tags {
		if scoringKinds[t.Kind()] {
			n++
		}
	}
	switch {
	case n >= 2:
		return High
	case n == 1:
		return Medium
	default:
		return Low
	}
}

// Route selects the action id for a risk decision. It is pure: identical
// inputs always yield the same action id. An empty return means no action.
func (r *Rules) Route(level Level, eventType string) string {
	switch {
	case level == Critical:
		return ActionAlertCritical
	case level == High:
		return ActionAlertHigh
	case level == Medium && r.IsSuspiciousEvent(eventType):
		return ActionAlertMedium
	default:
		return ""
	}
}
