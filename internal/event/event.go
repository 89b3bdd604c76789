package event

// StructuredEvent is the canonical validated form of an inbound
// webhook-style payload. Instances are only produced by Validate.
type StructuredEvent struct {
	EventType string    `json:"event_type"`
	Timestamp string    `json:"timestamp"` // ISO-8601, parsed downstream
	Source    string    `json:"source"`
	Data      EventData `json:"data"`
}

// EventData carries the action attempt described by the event.
type EventData struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	IPAddress         string      `json:"ip_address"`
	AttemptedResource string      `json:"attempted_resource"`
	Amount            *float64    `json:"amount,omitempty"`
	Location          string      `json:"location,omitempty"`
	DeviceInfo        *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo describes the client device that produced the event.
type DeviceInfo struct {
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	IPAddress string `json:"ip_address,omitempty"`
}
