package action

import (
	"fmt"
	"sort"
	"sync"

	"riskgate/internal/risk"
)

// Registry maps action ids to their handlers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry returns the fixed dispatch table. Note that
// risk_alert/medium is deliberately absent: routing may produce it, but
// dispatching it yields an unknown_action result.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CRMEscalation{})
	r.Register(NewRiskAlert(risk.ActionAlertGeneral, ""))
	r.Register(NewRiskAlert(risk.ActionAlertHigh, "high"))
	r.Register(NewRiskAlert(risk.ActionAlertCritical, "critical"))
	return r
}

// Register adds a handler. Panics on duplicate id to surface misconfiguration early.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Name()]; exists {
		panic(fmt.Sprintf("action registry: duplicate id %q", h.Name()))
	}
	r.handlers[h.Name()] = h
}

// Get returns the handler registered under the given action id.
func (r *Registry) Get(actionID string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionID]
	return h, ok
}

// Names returns all registered action ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
