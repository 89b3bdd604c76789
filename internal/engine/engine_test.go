package engine_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"riskgate/internal/action"
	"riskgate/internal/anomaly"
	"riskgate/internal/audit"
	"riskgate/internal/config"
	"riskgate/internal/engine"
	"riskgate/internal/risk"
)

var testNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*engine.Engine, *audit.Store) {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("audit.Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := action.NewDispatcher(action.NewDefaultRegistry(), store, logger)
	det := anomaly.NewAt(func() time.Time { return testNow })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	eng := engine.New(ctx, risk.DefaultRules(), det, dispatcher, store, logger, config.EngineConf{
		EventWorkers:   2,
		QueueDepth:     64,
		EventTimeoutMs: 3000,
	})
	return eng, store
}

type rawOpt func(map[string]any)

func rawEvent(eventType string, opts ...rawOpt) map[string]any {
	raw := map[string]any{
		"event_type": eventType,
		"timestamp":  testNow.Add(-5 * time.Minute).Format(time.RFC3339),
		"source":     "auth-service",
		"data": map[string]any{
			"id":                 "evt-1",
			"user_id":            "user-42",
			"ip_address":         "10.0.0.1",
			"attempted_resource": "/reports",
		},
	}
	for _, opt := range opts {
		opt(raw)
	}
	return raw
}

func data(raw map[string]any) map[string]any { return raw["data"].(map[string]any) }

func process(t *testing.T, eng *engine.Engine, raw map[string]any) *engine.TriageResult {
	t.Helper()
	res, err := eng.ProcessSync(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessSync error: %v", err)
	}
	return res
}

func kinds(tags []risk.Tag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.Kind()
	}
	return out
}

// Benign event, benign amount and location, no device info: nothing fires.
func TestCleanEventIsLowRisk(t *testing.T) {
	eng, store := newTestEngine(t)

	raw := rawEvent("login_attempt")
	data(raw)["amount"] = float64(5000)
	data(raw)["location"] = "US"

	res := process(t, eng, raw)
	if !res.IsValid {
		t.Fatalf("unexpected invalid: %+v", res.Errors)
	}
	if len(res.Anomalies) != 0 {
		t.Errorf("anomalies = %v, want none", res.Anomalies)
	}
	if res.RiskLevel != risk.Low || res.ActionTriggered != "" || res.ActionResult != nil {
		t.Errorf("unexpected decision: level=%v action=%q", res.RiskLevel, res.ActionTriggered)
	}
	if store.Len() != 1 {
		t.Errorf("audit records = %d, want 1", store.Len())
	}
}

// Matching device/source IPs raise ip_mismatch, which on its own cannot
// lift risk above low.
func TestMatchingDeviceIPStaysLow(t *testing.T) {
	eng, _ := newTestEngine(t)

	raw := rawEvent("login_attempt")
	data(raw)["amount"] = float64(5000)
	data(raw)["location"] = "US"
	data(raw)["device_info"] = map[string]any{"browser": "Firefox", "os": "Linux", "ip_address": "10.0.0.1"}

	res := process(t, eng, raw)
	if len(res.Anomalies) != 1 || res.Anomalies[0] != risk.TagIPMismatch {
		t.Errorf("anomalies = %v, want [ip_mismatch]", res.Anomalies)
	}
	if res.RiskLevel != risk.Low || res.ActionTriggered != "" {
		t.Errorf("unexpected decision: level=%v action=%q", res.RiskLevel, res.ActionTriggered)
	}
}

func TestHighRiskEventDispatchesAlert(t *testing.T) {
	eng, store := newTestEngine(t)

	raw := rawEvent("unauthorized_access")
	data(raw)["amount"] = float64(15000)
	data(raw)["location"] = "High Risk Country"
	data(raw)["device_info"] = map[string]any{"browser": "Firefox", "os": "Linux", "ip_address": "192.168.1.9"}

	res := process(t, eng, raw)
	got := kinds(res.Anomalies)
	want := []string{risk.KindSuspiciousEvent, risk.KindHighValue, risk.KindSuspiciousLocation}
	if len(got) != len(want) {
		t.Fatalf("anomaly kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("anomaly kinds = %v, want %v", got, want)
			break
		}
	}
	if res.RiskLevel != risk.High || res.ActionTriggered != risk.ActionAlertHigh {
		t.Errorf("decision = %v / %q", res.RiskLevel, res.ActionTriggered)
	}
	if res.ActionResult == nil || res.ActionResult.Status != action.StatusSuccess {
		t.Errorf("action result = %+v", res.ActionResult)
	}

	// Triage record plus action-router record.
	if store.Len() != 2 {
		t.Fatalf("audit records = %d, want 2", store.Len())
	}
	rec, err := store.Get(res.ActivityID)
	if err != nil {
		t.Fatalf("Get triage record: %v", err)
	}
	if rec.Source != "triage" || rec.ActionTriggered != risk.ActionAlertHigh {
		t.Errorf("triage record = %+v", rec)
	}
	if rec.Classification.RiskLevel != "high" || rec.Classification.Intent != "unauthorized_access" {
		t.Errorf("classification = %+v", rec.Classification)
	}
	last := rec.AgentTrace[len(rec.AgentTrace)-1]
	if !strings.Contains(last, "dispatched") {
		t.Errorf("trace missing dispatch step: %v", rec.AgentTrace)
	}
}

func TestCriticalEventTypeOverrides(t *testing.T) {
	eng, _ := newTestEngine(t)

	res := process(t, eng, rawEvent("data_breach"))
	if res.RiskLevel != risk.Critical || res.ActionTriggered != risk.ActionAlertCritical {
		t.Errorf("decision = %v / %q", res.RiskLevel, res.ActionTriggered)
	}
	if res.ActionResult == nil || res.ActionResult.Status != action.StatusSuccess {
		t.Errorf("action result = %+v", res.ActionResult)
	}
}

func TestStaleEventStaysLow(t *testing.T) {
	eng, _ := newTestEngine(t)

	raw := rawEvent("login_attempt")
	raw["timestamp"] = testNow.Add(-2 * time.Hour).Format(time.RFC3339)

	res := process(t, eng, raw)
	if len(res.Anomalies) != 1 || res.Anomalies[0] != risk.TagStaleEvent {
		t.Errorf("anomalies = %v, want [stale_event]", res.Anomalies)
	}
	if res.RiskLevel != risk.Low || res.ActionTriggered != "" {
		t.Errorf("decision = %v / %q", res.RiskLevel, res.ActionTriggered)
	}
}

// Medium risk routes to risk_alert/medium, which has no registered handler;
// the dispatch outcome is unknown_action, not an error.
func TestMediumRouteIsUnknownAction(t *testing.T) {
	eng, _ := newTestEngine(t)

	res := process(t, eng, rawEvent("failed_login"))
	if res.RiskLevel != risk.Medium || res.ActionTriggered != risk.ActionAlertMedium {
		t.Errorf("decision = %v / %q", res.RiskLevel, res.ActionTriggered)
	}
	if res.ActionResult == nil || res.ActionResult.Status != action.StatusUnknownAction {
		t.Errorf("action result = %+v", res.ActionResult)
	}
}

func TestValidationFailureIsHighRisk(t *testing.T) {
	eng, store := newTestEngine(t)

	raw := rawEvent("login_attempt")
	delete(data(raw), "user_id")

	res := process(t, eng, raw)
	if res.IsValid {
		t.Fatal("expected is_valid=false")
	}
	if res.RiskLevel != risk.High || res.ActionTriggered != risk.ActionAlertGeneral {
		t.Errorf("decision = %v / %q", res.RiskLevel, res.ActionTriggered)
	}
	found := false
	for _, fe := range res.Errors {
		if fe.Field == "data.user_id" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors lack data.user_id: %v", res.Errors)
	}
	if res.ActionResult == nil || res.ActionResult.Status != action.StatusSuccess {
		t.Errorf("general risk alert not dispatched: %+v", res.ActionResult)
	}

	// Rejections are audited like any other decision.
	if store.Len() != 2 {
		t.Errorf("audit records = %d, want 2", store.Len())
	}
	rec, err := store.Get(res.ActivityID)
	if err != nil {
		t.Fatalf("Get rejection record: %v", err)
	}
	if rec.Classification.Intent != "unknown" || rec.Classification.RiskLevel != "high" {
		t.Errorf("classification = %+v", rec.Classification)
	}
}

func TestSwapRules(t *testing.T) {
	eng, _ := newTestEngine(t)

	custom := risk.DefaultRules()
	custom.SuspiciousEvents = map[string]risk.Level{"badge_swipe": risk.Critical}
	eng.SwapRules(custom)

	res := process(t, eng, rawEvent("badge_swipe"))
	if res.RiskLevel != risk.Critical {
		t.Errorf("level = %v, want critical after rules swap", res.RiskLevel)
	}

	// Former vocabulary entries no longer fire.
	res = process(t, eng, rawEvent("failed_login"))
	if res.RiskLevel != risk.Low {
		t.Errorf("level = %v, want low after rules swap", res.RiskLevel)
	}
}

func TestProcessAsync(t *testing.T) {
	eng, store := newTestEngine(t)

	if !eng.ProcessAsync(rawEvent("login_attempt")) {
		t.Fatal("ProcessAsync rejected with spare capacity")
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.Len() != 1 {
		t.Errorf("audit records = %d, want 1", store.Len())
	}
}
