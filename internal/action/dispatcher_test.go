package action_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"riskgate/internal/action"
	"riskgate/internal/audit"
	"riskgate/internal/risk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDispatcher(t *testing.T, reg *action.Registry) (*action.Dispatcher, *audit.Store) {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "activity.log"))
	if err != nil {
		t.Fatalf("audit.Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return action.NewDispatcher(reg, store, discardLogger()), store
}

type failingHandler struct{}

func (failingHandler) Name() string { return "always/fails" }
func (failingHandler) Execute(context.Context, map[string]any) (*action.Result, error) {
	return nil, errors.New("downstream exploded")
}

type panickingHandler struct{}

func (panickingHandler) Name() string { return "always/panics" }
func (panickingHandler) Execute(context.Context, map[string]any) (*action.Result, error) {
	panic("boom")
}

func TestDispatchSuccess(t *testing.T) {
	d, store := newDispatcher(t, action.NewDefaultRegistry())
	input := map[string]any{"event_type": "unauthorized_access", "risk_level": "high"}

	res, err := d.Dispatch(context.Background(), risk.ActionAlertHigh, input)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Status != action.StatusSuccess {
		t.Errorf("status = %q, want success", res.Status)
	}
	if !strings.HasPrefix(res.RefID, "RISK-") {
		t.Errorf("ref id %q lacks RISK- prefix", res.RefID)
	}
	if store.Len() != 1 {
		t.Errorf("audit records = %d, want 1", store.Len())
	}

	// Reference ids are content-derived: identical input, identical id.
	again, err := d.Dispatch(context.Background(), risk.ActionAlertHigh, input)
	if err != nil {
		t.Fatalf("second Dispatch error: %v", err)
	}
	if again.RefID != res.RefID {
		t.Errorf("ref id not deterministic: %q vs %q", res.RefID, again.RefID)
	}
}

func TestDispatchEscalation(t *testing.T) {
	d, _ := newDispatcher(t, action.NewDefaultRegistry())

	res, err := d.Dispatch(context.Background(), risk.ActionEscalate, map[string]any{"case": "c-1"})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Status != action.StatusSuccess || !strings.HasPrefix(res.RefID, "ESC-") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	d, store := newDispatcher(t, action.NewDefaultRegistry())

	// risk_alert/medium is routable but deliberately unregistered.
	res, err := d.Dispatch(context.Background(), risk.ActionAlertMedium, nil)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Status != action.StatusUnknownAction || res.Action != risk.ActionAlertMedium {
		t.Errorf("unexpected result: %+v", res)
	}
	if store.Len() != 0 {
		t.Errorf("unknown action should not log activity, got %d records", store.Len())
	}
}

func TestDispatchNoAction(t *testing.T) {
	d, _ := newDispatcher(t, action.NewDefaultRegistry())

	res, err := d.Dispatch(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Status != action.StatusNoAction {
		t.Errorf("status = %q, want no_action_needed", res.Status)
	}
}

func TestDispatchHandlerFailure(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register(failingHandler{})
	reg.Register(panickingHandler{})
	d, store := newDispatcher(t, reg)

	res, err := d.Dispatch(context.Background(), "always/fails", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("handler failure must not surface as a Go error, got %v", err)
	}
	if res.Status != action.StatusError || res.Error == "" || res.Action != "always/fails" {
		t.Errorf("unexpected result: %+v", res)
	}

	res, err = d.Dispatch(context.Background(), "always/panics", nil)
	if err != nil {
		t.Fatalf("handler panic must not surface as a Go error, got %v", err)
	}
	if res.Status != action.StatusError || !strings.Contains(res.Error, "panic") {
		t.Errorf("unexpected result: %+v", res)
	}

	// Both failures are audited.
	if store.Len() != 2 {
		t.Errorf("audit records = %d, want 2", store.Len())
	}
}

func TestRegistry(t *testing.T) {
	reg := action.NewDefaultRegistry()

	want := []string{
		risk.ActionEscalate,
		risk.ActionAlertGeneral,
		risk.ActionAlertCritical,
		risk.ActionAlertHigh,
	}
	for _, name := range want {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("default registry missing %q", name)
		}
	}
	if _, ok := reg.Get(risk.ActionAlertMedium); ok {
		t.Errorf("%q must not be registered", risk.ActionAlertMedium)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	reg.Register(action.CRMEscalation{})
}
