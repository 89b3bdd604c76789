// Package engine orchestrates the triage pipeline: schema validation,
// anomaly detection, risk classification, action routing, and audit
// recording. Events flow through a bounded worker pool; inside a worker the
// pipeline is one sequential call chain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"riskgate/internal/action"
	"riskgate/internal/agent"
	"riskgate/internal/anomaly"
	"riskgate/internal/audit"
	"riskgate/internal/config"
	"riskgate/internal/event"
	"riskgate/internal/metrics"
	"riskgate/internal/risk"
)

// tagSchemaFailure appears in the anomalies list of rejected events. It is a
// result marker, not part of the detector vocabulary.
const tagSchemaFailure risk.Tag = "schema_validation_failed"

// TriageResult is the outcome of processing one raw event.
type TriageResult struct {
	IsValid         bool                   `json:"is_valid"`
	Data            *event.StructuredEvent `json:"data,omitempty"`
	Anomalies       []risk.Tag             `json:"anomalies"`
	RiskLevel       risk.Level             `json:"risk_level"`
	ActionTriggered string                 `json:"action_triggered,omitempty"`
	ActionResult    *action.Result         `json:"action_result,omitempty"`
	Errors          []event.FieldError     `json:"errors,omitempty"`
	ActivityID      int64                  `json:"activity_id,omitempty"`
	DurationMs      int64                  `json:"duration_ms"`

	// storeErr carries an audit infrastructure failure back to the
	// submitting goroutine; it is never part of the triage payload.
	storeErr error
}

// Engine runs the triage pipeline over a worker pool.
type Engine struct {
	*agent.Agent
	rules      atomic.Pointer[risk.Rules]
	detector   *anomaly.Detector
	dispatcher *action.Dispatcher
	pool       *workerPool
	conf       config.EngineConf
}

// New creates an Engine and starts its worker pool.
func New(ctx context.Context, rules *risk.Rules, det *anomaly.Detector, disp *action.Dispatcher, store *audit.Store, log *slog.Logger, conf config.EngineConf) *Engine {
	e := &Engine{
		Agent:      agent.New("triage", store, log),
		detector:   det,
		dispatcher: disp,
		conf:       conf,
	}
	e.rules.Store(rules)
	e.pool = newWorkerPool(ctx, conf.EventWorkers, conf.QueueDepth, func(ctx context.Context, w *triageWork) {
		res := e.processEvent(ctx, w.raw)
		if w.resultC != nil {
			w.resultC <- res
		}
	})
	return e
}

// SwapRules atomically replaces the risk rule set (used on hot-reload).
func (e *Engine) SwapRules(r *risk.Rules) {
	e.rules.Store(r)
}

// Rules returns the currently active rule set.
func (e *Engine) Rules() *risk.Rules {
	return e.rules.Load()
}

// Dispatcher exposes the action router for callers with pre-classified
// payloads (document/email agents, the dispatch API).
func (e *Engine) Dispatcher() *action.Dispatcher {
	return e.dispatcher
}

// ProcessSync processes a raw event synchronously and returns the result.
// It fails fast when the queue is full and returns an infrastructure error
// if the audit trail could not record the decision.
func (e *Engine) ProcessSync(ctx context.Context, raw map[string]any) (*TriageResult, error) {
	resultC := make(chan *TriageResult, 1)
	w := &triageWork{raw: raw, resultC: resultC}

	timeout := time.Duration(e.conf.EventTimeoutMs) * time.Millisecond
	if !e.pool.Submit(w) {
		metrics.EventsDropped.Inc()
		return nil, fmt.Errorf("event queue full (capacity %d)", e.pool.QueueCap())
	}
	metrics.EventsEnqueued.Inc()

	select {
	case res := <-resultC:
		if res.storeErr != nil {
			return nil, res.storeErr
		}
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("event processing timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues a raw event for background processing.
// Returns false if the queue is full.
func (e *Engine) ProcessAsync(raw map[string]any) bool {
	if !e.pool.Submit(&triageWork{raw: raw}) {
		metrics.EventsDropped.Inc()
		return false
	}
	metrics.EventsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0-1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) processEvent(ctx context.Context, raw map[string]any) *TriageResult {
	start := time.Now()
	rules := e.rules.Load()

	ev, err := event.Validate(raw)
	var res *TriageResult
	if err != nil {
		res = e.rejectEvent(ctx, err)
	} else {
		res = e.triageEvent(ctx, rules, ev)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	metrics.EventsProcessed.Inc()
	metrics.TriageDuration.Observe(float64(res.DurationMs))
	return res
}

// rejectEvent handles schema validation failure. The failure is itself a
// risk signal: the event is treated as high risk and the general risk alert
// fires.
func (e *Engine) rejectEvent(ctx context.Context, err error) *TriageResult {
	metrics.ValidationFailures.Inc()
	metrics.RiskDecisions.WithLabelValues(risk.High.String()).Inc()

	res := &TriageResult{
		IsValid:         false,
		Anomalies:       []risk.Tag{tagSchemaFailure},
		RiskLevel:       risk.High,
		ActionTriggered: risk.ActionAlertGeneral,
	}
	var verr *event.ValidationError
	if errors.As(err, &verr) {
		res.Errors = verr.Fields
	} else {
		res.Errors = []event.FieldError{{Field: "event", Reason: err.Error()}}
	}

	id, logErr := e.LogActivity(
		audit.Classification{Format: "event", Intent: "unknown", RiskLevel: risk.High.String()},
		map[string]any{"validation_errors": res.Errors},
		res.ActionTriggered,
		[]string{"Schema validation failed", "High risk due to invalid input"},
	)
	if logErr != nil {
		res.storeErr = logErr
		return res
	}
	res.ActivityID = id

	e.forwardAction(ctx, res, map[string]any{
		"risk_level": res.RiskLevel.String(),
		"errors":     res.Errors,
	})
	return res
}

// triageEvent runs detection, classification, and routing on a validated event.
func (e *Engine) triageEvent(ctx context.Context, rules *risk.Rules, ev *event.StructuredEvent) *TriageResult {
	tags := e.detector.Detect(ev, rules)
	for _, t := range tags {
		metrics.AnomaliesDetected.WithLabelValues(t.Kind()).Inc()
	}

	level := rules.Classify(tags, ev.EventType)
	metrics.RiskDecisions.WithLabelValues(level.String()).Inc()
	actionID := rules.Route(level, ev.EventType)

	res := &TriageResult{
		IsValid:         true,
		Data:            ev,
		Anomalies:       tags,
		RiskLevel:       level,
		ActionTriggered: actionID,
	}

	factors := make([]string, len(tags))
	for i, t := range tags {
		factors[i] = t.Kind()
	}
	trace := []string{
		"Schema validation",
		"Anomaly detection",
		"Risk assessment: " + level.String(),
	}
	if actionID != "" {
		trace = append(trace, "Action triggered: "+actionID)
	} else {
		trace = append(trace, "No action required")
	}

	id, logErr := e.LogActivity(
		audit.Classification{Format: "event", Intent: ev.EventType, RiskLevel: level.String()},
		map[string]any{
			"validated_data": ev,
			"anomalies":      tags,
			"risk_assessment": map[string]any{
				"level":   level.String(),
				"factors": factors,
			},
		},
		actionID,
		trace,
	)
	if logErr != nil {
		res.storeErr = logErr
		return res
	}
	res.ActivityID = id

	if actionID != "" {
		e.forwardAction(ctx, res, map[string]any{
			"event_type": ev.EventType,
			"risk_level": level.String(),
			"anomalies":  tags,
			"source":     ev.Source,
		})
	}
	return res
}

// forwardAction dispatches the triggered action and ties its outcome back to
// the originating activity record's trace.
func (e *Engine) forwardAction(ctx context.Context, res *TriageResult, input map[string]any) {
	ar, err := e.dispatcher.Dispatch(ctx, res.ActionTriggered, input)
	if err != nil {
		res.storeErr = err
		return
	}
	res.ActionResult = ar

	if err := e.ExtendTrace(res.ActivityID, fmt.Sprintf("action %s dispatched (%s)", res.ActionTriggered, ar.Status)); err != nil {
		res.storeErr = err
	}
}
