package audit

// Classification captures what a stage decided about its input.
type Classification struct {
	Format    string `json:"format"`
	Intent    string `json:"intent"`
	RiskLevel string `json:"risk_level,omitempty"`
}

// ActivityRecord is one immutable audit-trail entry. The store assigns the
// ID; after Append the only permitted change is appending trace steps via
// Store.AppendTrace.
type ActivityRecord struct {
	ID              int64          `json:"id"`
	Source          string         `json:"source"`
	Timestamp       string         `json:"timestamp"` // UTC, trailing "Z"
	Classification  Classification `json:"classification"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	ActionTriggered string         `json:"action_triggered,omitempty"`
	AgentTrace      []string       `json:"agent_trace"`
}

// clone returns a copy whose trace the caller may not alias back into the
// store. ExtractedFields values are shared; treat them as read-only.
func (r *ActivityRecord) clone() ActivityRecord {
	out := *r
	out.AgentTrace = append([]string(nil), r.AgentTrace...)
	return out
}
