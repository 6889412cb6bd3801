package policyengine

import (
	"testing"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func TestEvaluateUnknownToolDenies(t *testing.T) {
	d := Evaluate(Check{Found: false})
	if d.Type != models.DecisionDeny || d.ReasonCode != ReasonUnknownTool || d.RiskScore != 100 {
		t.Fatalf("expected DENY/UNKNOWN_TOOL/100, got %+v", d)
	}
}

func TestEvaluateLowRiskReadClampsRisk(t *testing.T) {
	d := Evaluate(Check{
		Found:       true,
		ActionType:  models.ActionRead,
		Sensitivity: models.SensitivityLow,
		SideEffects: false,
	})
	if d.Type != models.DecisionAllow || d.ReasonCode != ReasonLowRiskRead {
		t.Fatalf("expected ALLOW/LOW_RISK_READ, got %+v", d)
	}
	if d.RiskScore > 10 {
		t.Fatalf("expected risk clamped to <=10, got %d", d.RiskScore)
	}
}

func TestEvaluateExternalCommRequiresConfirmation(t *testing.T) {
	d := Evaluate(Check{
		Found:                 true,
		ActionType:            models.ActionWrite,
		Sensitivity:           models.SensitivityMedium,
		ExternalCommunication: true,
		TargetEntity:          "alice@example.com",
	})
	if d.Type != models.DecisionAllowWithConfirm || d.ReasonCode != ReasonExternalCommConfirm {
		t.Fatalf("expected ALLOW_WITH_CONFIRMATION/EXTERNAL_COMM_CONFIRM, got %+v", d)
	}
	if d.RiskScore < 60 {
		t.Fatalf("expected risk >= 60, got %d", d.RiskScore)
	}
	if d.ExpiresAt == nil {
		t.Fatal("expected ExpiresAt to be set for a confirmation-requiring decision")
	}
}

func TestEvaluateDestructiveOverridesExternalComm(t *testing.T) {
	d := Evaluate(Check{
		Found:                 true,
		ActionType:            models.ActionDelete,
		Sensitivity:           models.SensitivityHigh,
		ExternalCommunication: true,
		Destructive:           true,
		TargetEntity:          "project-x",
	})
	if d.Type != models.DecisionEscalate || d.ReasonCode != ReasonDestructiveAction {
		t.Fatalf("expected destructive to override external-comm, got %+v", d)
	}
	if d.RequiredPhrase == "" {
		t.Fatal("expected a required phrase for an ESCALATE decision")
	}
}

func TestEvaluateSystemExecuteOverridesDestructive(t *testing.T) {
	d := Evaluate(Check{
		Found:       true,
		ActionType:  models.ActionExecute,
		Sensitivity: models.SensitivityHigh,
		Destructive: true,
		Category:    models.CategorySystem,
	})
	if d.Type != models.DecisionEscalate || d.ReasonCode != ReasonSystemExecute {
		t.Fatalf("expected system-exec to override destructive, got %+v", d)
	}
	if d.RiskScore != 100 {
		t.Fatalf("expected risk 100, got %d", d.RiskScore)
	}
	if d.RequiredPhrase != "CONFIRM SYSTEM EXECUTE" {
		t.Fatalf("expected exact system-exec phrase, got %q", d.RequiredPhrase)
	}
}

func TestEvaluateBatchUpgradesAllowToConfirm(t *testing.T) {
	d := Evaluate(Check{
		Found:       true,
		ActionType:  models.ActionWrite,
		Sensitivity: models.SensitivityMedium,
		Scope:       models.ScopeBatch,
	})
	if d.Type != models.DecisionAllowWithConfirm || d.ReasonCode != ReasonBatchOperationConfirm {
		t.Fatalf("expected batch upgrade to ALLOW_WITH_CONFIRMATION, got %+v", d)
	}
}

func TestEvaluateNonEscalateClearsRequiredPhrase(t *testing.T) {
	d := Evaluate(Check{
		Found:                 true,
		ActionType:            models.ActionWrite,
		Sensitivity:           models.SensitivityMedium,
		ExternalCommunication: true,
	})
	if d.RequiredPhrase != "" {
		t.Fatalf("expected no required phrase on a non-ESCALATE decision, got %q", d.RequiredPhrase)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	check := Check{
		Found:       true,
		ActionType:  models.ActionWrite,
		Sensitivity: models.SensitivityHigh,
		Scope:       models.ScopeBatch,
	}
	first := Evaluate(check)
	second := Evaluate(check)
	if first.Type != second.Type || first.RiskScore != second.RiskScore || first.ReasonCode != second.ReasonCode {
		t.Fatalf("expected identical inputs to produce identical decisions: %+v vs %+v", first, second)
	}
}
