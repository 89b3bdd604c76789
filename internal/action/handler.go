package action

import "context"

// Result statuses. Dispatch always produces one of these; handler failures
// are folded into StatusError rather than surfaced as Go errors.
const (
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusUnknownAction = "unknown_action"
	StatusNoAction      = "no_action_needed"
)

// Result is the structured outcome of a dispatch.
type Result struct {
	Status  string `json:"status"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
	RefID   string `json:"ref_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler is one entry in the dispatch table. Implementations here are
// simulations; real integrations replace them without touching the dispatch
// contract. A handler must not fail for well-formed input.
type Handler interface {
	// Name returns the action id this handler is registered under.
	Name() string
	// Execute performs the action and returns a success payload.
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}
