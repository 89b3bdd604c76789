// Package action implements the action-routing dispatch table: a registry of
// named handlers, simulated downstream integrations, and the dispatcher that
// executes them behind a never-faulting boundary.
package action

import (
	"context"
	"fmt"
	"log/slog"

	"riskgate/internal/agent"
	"riskgate/internal/audit"
	"riskgate/internal/metrics"
)

// Dispatcher routes action ids to handlers and records every execution in
// the audit trail. Dispatch never propagates a handler failure as a Go
// error; the only error it returns is an audit store failure.
type Dispatcher struct {
	*agent.Agent
	registry *Registry
}

// NewDispatcher creates the action-router stage.
func NewDispatcher(reg *Registry, store *audit.Store, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Agent:    agent.New("action_router", store, log),
		registry: reg,
	}
}

// Dispatch executes the handler for actionID with the given input.
// An empty actionID is a no-op; an unregistered one yields unknown_action.
// Handler errors and panics are caught here and converted to structured
// error results.
func (d *Dispatcher) Dispatch(ctx context.Context, actionID string, input map[string]any) (*Result, error) {
	if actionID == "" {
		return &Result{Status: StatusNoAction}, nil
	}

	h, ok := d.registry.Get(actionID)
	if !ok {
		metrics.ActionsDispatched.WithLabelValues(actionID, StatusUnknownAction).Inc()
		d.Log().Warn("no handler for action", "action", actionID)
		return &Result{Status: StatusUnknownAction, Action: actionID}, nil
	}

	res, err := execute(ctx, h, input)
	if err != nil {
		d.Log().Error("action handler failed", "action", actionID, "err", err)
		res = &Result{
			Status: StatusError,
			Action: actionID,
			Error:  err.Error(),
		}
	}
	metrics.ActionsDispatched.WithLabelValues(actionID, res.Status).Inc()

	fields := map[string]any{
		"input":  input,
		"result": res,
	}
	if _, logErr := d.LogActivity(
		audit.Classification{Format: "action", Intent: actionID},
		fields,
		actionID,
		nil,
	); logErr != nil {
		return nil, logErr
	}
	return res, nil
}

// execute runs a handler, converting panics into errors so a broken
// simulation can never take down the router.
func execute(ctx context.Context, h Handler, input map[string]any) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	res, err = h.Execute(ctx, input)
	if err == nil && res == nil {
		err = fmt.Errorf("handler returned no result")
	}
	return res, err
}
