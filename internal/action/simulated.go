package action

import (
	"context"

	"riskgate/internal/risk"
)

// CRMEscalation simulates escalating a case in the CRM.
type CRMEscalation struct{}

func (CRMEscalation) Name() string { return risk.ActionEscalate }

func (h CRMEscalation) Execute(_ context.Context, input map[string]any) (*Result, error) {
	return &Result{
		Status:  StatusSuccess,
		Action:  h.Name(),
		Message: "Escalation request processed",
		RefID:   refID("ESC", input),
	}, nil
}

// RiskAlert simulates creating a risk alert, optionally at a fixed severity.
type RiskAlert struct {
	name     string
	severity string
}

// NewRiskAlert builds a risk alert handler registered under name. An empty
// severity is the general alert used for validation failures.
func NewRiskAlert(name, severity string) RiskAlert {
	return RiskAlert{name: name, severity: severity}
}

func (h RiskAlert) Name() string { return h.name }

func (h RiskAlert) Execute(_ context.Context, input map[string]any) (*Result, error) {
	msg := "Risk alert created"
	if h.severity != "" {
		msg = "Risk alert created (severity " + h.severity + ")"
	}
	return &Result{
		Status:  StatusSuccess,
		Action:  h.name,
		Message: msg,
		RefID:   refID("RISK", input),
	}, nil
}
