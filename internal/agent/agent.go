// Package agent holds the contract shared by every pipeline stage: a named
// identity, structured logging, and activity recording with trace
// composition. Stages embed an Agent rather than talking to the audit store
// directly so that trace ordering stays uniform.
package agent

import (
	"log/slog"

	"riskgate/internal/audit"
	"riskgate/internal/metrics"
)

// Agent is the base behavior of one pipeline stage.
type Agent struct {
	name  string
	store *audit.Store
	log   *slog.Logger
}

// New creates a stage agent. The slog logger is scoped to the stage name.
func New(name string, store *audit.Store, log *slog.Logger) *Agent {
	return &Agent{
		name:  name,
		store: store,
		log:   log.With("agent", name),
	}
}

// Name returns the stage name used as the record source.
func (a *Agent) Name() string { return a.name }

// Log returns the stage-scoped logger.
func (a *Agent) Log() *slog.Logger { return a.log }

// LogActivity records one activity for this stage. The stage name is
// prepended to the supplied trace; a nil trace becomes just the stage name.
// The returned id identifies the stored record.
func (a *Agent) LogActivity(cls audit.Classification, fields map[string]any, actionTriggered string, trace []string) (int64, error) {
	full := make([]string, 0, len(trace)+1)
	full = append(full, a.name)
	full = append(full, trace...)

	id, err := a.store.Append(audit.ActivityRecord{
		Source:          a.name,
		Classification:  cls,
		ExtractedFields: fields,
		ActionTriggered: actionTriggered,
		AgentTrace:      full,
	})
	if err != nil {
		metrics.AuditAppendFailures.Inc()
		a.log.Error("activity append failed", "err", err)
		return 0, err
	}
	a.log.Info("activity recorded", "activity_id", id, "intent", cls.Intent, "action", actionTriggered)
	return id, nil
}

// ExtendTrace appends this stage's note to an existing record's trace.
func (a *Agent) ExtendTrace(id int64, step string) error {
	return a.store.AppendTrace(id, a.name+": "+step)
}
