package event

import (
	"fmt"
	"strings"
)

// FieldError names one schema violation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Reason
}

// ValidationError collects every schema violation found in a raw payload.
// Validation never stops at the first bad field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "event validation failed: " + strings.Join(parts, "; ")
}

// Validate checks a raw decoded map against the StructuredEvent schema.
// On failure it returns a *ValidationError listing all missing or mistyped
// fields; no partially validated event is ever returned.
func Validate(raw map[string]any) (*StructuredEvent, error) {
	var errs []FieldError

	ev := &StructuredEvent{
		EventType: requireString(raw, "event_type", "", &errs),
		Timestamp: requireString(raw, "timestamp", "", &errs),
		Source:    requireString(raw, "source", "", &errs),
	}

	data, ok := raw["data"]
	if !ok {
		errs = append(errs, FieldError{Field: "data", Reason: "required"})
	} else if m, ok := data.(map[string]any); ok {
		ev.Data = validateData(m, &errs)
	} else {
		errs = append(errs, FieldError{Field: "data", Reason: fmt.Sprintf("expected object, got %T", data)})
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return ev, nil
}

func validateData(m map[string]any, errs *[]FieldError) EventData {
	d := EventData{
		ID:                requireString(m, "id", "data.", errs),
		UserID:            requireString(m, "user_id", "data.", errs),
		IPAddress:         requireString(m, "ip_address", "data.", errs),
		AttemptedResource: requireString(m, "attempted_resource", "data.", errs),
	}

	if v, ok := m["amount"]; ok && v != nil {
		if f, ok := toFloat64(v); ok {
			d.Amount = &f
		} else {
			*errs = append(*errs, FieldError{Field: "data.amount", Reason: fmt.Sprintf("expected number, got %T", v)})
		}
	}
	if v, ok := m["location"]; ok && v != nil {
		if s, ok := v.(string); ok {
			d.Location = s
		} else {
			*errs = append(*errs, FieldError{Field: "data.location", Reason: fmt.Sprintf("expected string, got %T", v)})
		}
	}
	if v, ok := m["device_info"]; ok && v != nil {
		if dm, ok := v.(map[string]any); ok {
			di := DeviceInfo{
				Browser: requireString(dm, "browser", "data.device_info.", errs),
				OS:      requireString(dm, "os", "data.device_info.", errs),
			}
			if ip, ok := dm["ip_address"]; ok && ip != nil {
				if s, ok := ip.(string); ok {
					di.IPAddress = s
				} else {
					*errs = append(*errs, FieldError{Field: "data.device_info.ip_address", Reason: fmt.Sprintf("expected string, got %T", ip)})
				}
			}
			d.DeviceInfo = &di
		} else {
			*errs = append(*errs, FieldError{Field: "data.device_info", Reason: fmt.Sprintf("expected object, got %T", v)})
		}
	}
	return d
}

// requireString pulls a mandatory string field, recording an error if the
// field is absent, nil, or not a string.
func requireString(m map[string]any, key, prefix string, errs *[]FieldError) string {
	v, ok := m[key]
	if !ok || v == nil {
		*errs = append(*errs, FieldError{Field: prefix + key, Reason: "required"})
		return ""
	}
	s, ok := v.(string)
	if !ok {
		*errs = append(*errs, FieldError{Field: prefix + key, Reason: fmt.Sprintf("expected string, got %T", v)})
		return ""
	}
	return s
}

// toFloat64 accepts the numeric types JSON decoding and programmatic
// callers produce.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
