// Package policyengine implements the deterministic, side-effect-free risk
// evaluation that decides whether a tool call is allowed, needs
// confirmation, must escalate, or is denied outright. It performs no I/O:
// callers persist the returned PolicyDecision themselves.
package policyengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// Reason codes attached to a Decision, audited verbatim in PolicyDecision.
const (
	ReasonUnknownTool        = "UNKNOWN_TOOL"
	ReasonStandardAllow      = "STANDARD_ALLOW"
	ReasonLowRiskRead        = "LOW_RISK_READ"
	ReasonExternalCommConfirm = "EXTERNAL_COMM_CONFIRM"
	ReasonDestructiveAction  = "DESTRUCTIVE_ACTION"
	ReasonBatchOperationConfirm = "BATCH_OPERATION_CONFIRM"
	ReasonSystemExecute      = "SYSTEM_EXECUTE"
	ReasonUserConfirmed      = "USER_CONFIRMED"
)

const confirmationTTL = time.Hour

// Check is the Policy Engine's only input: everything it needs to reach a
// decision, already assembled by the caller.
type Check struct {
	ToolName      string
	ActionType    models.ActionType
	TargetEntity  string
	Scope         models.Scope
	Sensitivity   models.Sensitivity
	IntentSummary string
	ArgsPreview   map[string]any

	// Fields sourced from the tool's ToolSpec, passed in explicitly so
	// this function stays pure (no registry lookups of its own).
	SideEffects           bool
	ExternalCommunication bool
	Destructive           bool
	Category              models.ToolCategory

	// Found is false when the caller already knows the tool name didn't
	// resolve in the registry, short-circuiting straight to UNKNOWN_TOOL.
	Found bool
}

// Decision is the Policy Engine's pure-function output, prior to
// persistence; the caller stamps IDs/timestamps when writing the
// PolicyDecision audit row.
type Decision struct {
	Type           models.PolicyDecisionType
	RiskScore      int
	ReasonCode     string
	Prompt         string
	RequiredPhrase string
	ExpiresAt      *time.Time
}

// Evaluate runs the numbered rule set against check, in the fixed order
// the invariants depend on: destructive overrides external-comm; system-
// exec overrides destructive, because it is applied last with the
// strongest outcome.
func Evaluate(check Check) Decision {
	if !check.Found {
		return Decision{Type: models.DecisionDeny, RiskScore: 100, ReasonCode: ReasonUnknownTool}
	}

	risk := 0
	decision := models.DecisionAllow
	reason := ReasonStandardAllow
	var prompt, requiredPhrase string

	switch check.Sensitivity {
	case models.SensitivityLow:
		risk = 10
	case models.SensitivityMedium:
		risk = 40
	case models.SensitivityHigh:
		risk = 70
	}
	if check.Scope == models.ScopeBatch || check.Scope == models.ScopeAll {
		risk += 20
	}

	if check.ActionType == models.ActionRead && !check.SideEffects && check.Sensitivity == models.SensitivityLow {
		if risk > 10 {
			risk = 10
		}
		decision = models.DecisionAllow
		reason = ReasonLowRiskRead
	}

	if check.ExternalCommunication {
		decision = models.DecisionAllowWithConfirm
		risk = maxInt(risk, 60)
		reason = ReasonExternalCommConfirm
		prompt = fmt.Sprintf("This will contact %s. Proceed?", check.TargetEntity)
	}

	if check.Destructive || check.ActionType == models.ActionDelete {
		decision = models.DecisionEscalate
		risk = maxInt(risk, 85)
		reason = ReasonDestructiveAction
		requiredPhrase = strings.ToUpper(fmt.Sprintf("CONFIRM %s %s", check.ActionType, check.TargetEntity))
	}

	if (check.Scope == models.ScopeBatch || check.Scope == models.ScopeAll) && decision == models.DecisionAllow && risk > 30 {
		decision = models.DecisionAllowWithConfirm
		reason = ReasonBatchOperationConfirm
	}

	if check.Category == models.CategorySystem && check.ActionType == models.ActionExecute {
		decision = models.DecisionEscalate
		risk = 100
		reason = ReasonSystemExecute
		requiredPhrase = "CONFIRM SYSTEM EXECUTE"
	}

	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	if decision != models.DecisionEscalate {
		requiredPhrase = ""
	}

	out := Decision{Type: decision, RiskScore: risk, ReasonCode: reason, Prompt: prompt, RequiredPhrase: requiredPhrase}
	if decision == models.DecisionAllowWithConfirm || decision == models.DecisionEscalate {
		expires := timeNow().Add(confirmationTTL)
		out.ExpiresAt = &expires
	}
	return out
}

// CheckFromSpec builds a Check from a registered ToolSpec, applying its
// declared defaults; callers may still override ActionType/Scope/
// Sensitivity per invocation, since a single tool call may narrow its
// own scope below the tool's registered default.
func CheckFromSpec(spec toolregistry.ToolSpec, found bool, targetEntity, intentSummary string, argsPreview map[string]any) Check {
	return Check{
		ToolName:              spec.Name,
		ActionType:            spec.DefaultActionType,
		TargetEntity:          targetEntity,
		Scope:                 spec.DefaultScope,
		Sensitivity:           spec.DefaultSensitivity,
		IntentSummary:         intentSummary,
		ArgsPreview:           argsPreview,
		SideEffects:           spec.SideEffects,
		ExternalCommunication: spec.ExternalCommunication,
		Destructive:           spec.Destructive,
		Category:              spec.Category,
		Found:                 found,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// timeNow is a seam so tests can confirm ExpiresAt is set without needing
// an exact clock match.
var timeNow = time.Now
