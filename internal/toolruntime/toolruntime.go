// Package toolruntime implements the single, mandatory tool execution
// path: registry lookup, scope check, argument validation, idempotency
// reservation, reserved-confirmation short-circuit, policy evaluation,
// guards, handler execution, redaction, and terminal persistence. Every
// intermediate exit persists something so a crash mid-execution leaves a
// recoverable trace.
package toolruntime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jadhavgaurav/agentcore/internal/agenterrors"
	"github.com/jadhavgaurav/agentcore/internal/confirmation"
	"github.com/jadhavgaurav/agentcore/internal/guards"
	"github.com/jadhavgaurav/agentcore/internal/policyengine"
	"github.com/jadhavgaurav/agentcore/internal/redact"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/internal/toolregistry"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// DefaultToolTimeout bounds a single handler invocation.
const DefaultToolTimeout = 30 * time.Second

// Status classifies a Runtime.Execute outcome.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusDenied           Status = "denied"
	StatusError            Status = "error"
	StatusNeedsConfirm     Status = "needs_confirmation"
)

// Result is the Tool Runtime's single return type, carrying every field
// the Orchestrator needs to summarize a turn without re-deriving it.
type Result struct {
	Status               Status
	Data                 map[string]any
	Error                string
	LatencyMS            int64
	RedactionsApplied    []string
	PolicyDecisionID     string
	PendingConfirmationID string
	ConfirmationPrompt   string
}

// Request describes one invocation attempt.
type Request struct {
	UserID         string
	SessionID      string
	ToolName       string
	Args           map[string]any
	IdempotencyKey string
	TraceID        string
	// TargetEntity/IntentSummary feed the Policy Engine's Check; both are
	// advisory and safe to leave empty.
	TargetEntity  string
	IntentSummary string
}

// Runtime composes the Tool Registry, Policy Engine, Confirmation Manager,
// and Guards into one execution pipeline.
type Runtime struct {
	store    store.Store
	registry *toolregistry.Registry
	confirm  *confirmation.Manager
	guards   *guards.Guards
	timeout  time.Duration
}

// New builds a Runtime over db, with tools registered in reg.
func New(db store.Store, reg *toolregistry.Registry) *Runtime {
	return &Runtime{
		store:    db,
		registry: reg,
		confirm:  confirmation.New(db),
		guards:   guards.New(db),
		timeout:  DefaultToolTimeout,
	}
}

// WithTimeout overrides the per-handler execution deadline.
func (r *Runtime) WithTimeout(d time.Duration) *Runtime {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// effectiveScopes computes the session-override-or-user-scopes set that
// Session.EffectiveScopes describes.
func effectiveScopes(session *models.Session, user *models.User) map[string]bool {
	scopes := session.EffectiveScopes(user)
	set := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		set[s] = true
	}
	return set
}

func (r *Runtime) insertToolCall(ctx context.Context, sessionID, toolName, status string, latencyMS int64) {
	_ = r.store.ToolCalls().Insert(ctx, &models.ToolCall{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ToolName:  toolName,
		Status:    status,
		LatencyMS: latencyMS,
		CreatedAt: time.Now().UTC(),
	})
}

// Execute runs the full pipeline for req and returns a Result. It never
// returns a Go error for expected denial/validation/confirmation outcomes
// — those are carried in Result.Status; a non-nil error return means the
// persistence layer itself failed.
func (r *Runtime) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	// Step 1: registry lookup.
	spec, handler, found := r.registry.Lookup(req.ToolName)
	if !found {
		r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", time.Since(start).Milliseconds())
		return Result{Status: StatusDenied, Error: "UNKNOWN_TOOL", LatencyMS: time.Since(start).Milliseconds()}, nil
	}

	// Step 2: scope check.
	session, err := r.store.Sessions().Get(ctx, req.SessionID)
	if err != nil {
		return Result{}, fmt.Errorf("toolruntime: load session: %w", err)
	}
	user, err := r.store.Users().Get(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("toolruntime: load user: %w", err)
	}
	if spec.RequiredScope != "" && !effectiveScopes(session, user)[spec.RequiredScope] {
		r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", time.Since(start).Milliseconds())
		return Result{Status: StatusDenied, Error: "SCOPE_MISSING", LatencyMS: time.Since(start).Milliseconds()}, nil
	}

	// Step 3: argument validation.
	if err := r.registry.ValidateArgs(req.ToolName, req.Args); err != nil {
		r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", time.Since(start).Milliseconds())
		agErr := agenterrors.New(agenterrors.KindValidation, "argument validation failed", err)
		return Result{Status: StatusError, Error: agErr.UserMessage(), LatencyMS: time.Since(start).Milliseconds()}, nil
	}

	// Step 4: idempotency reservation.
	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.NewString()
	}
	exec := &models.ToolExecution{
		ID:             uuid.NewString(),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		ToolName:       req.ToolName,
		Input:          req.Args,
		Status:         models.ToolExecRequested,
		IdempotencyKey: idemKey,
		TraceID:        req.TraceID,
	}
	existing, ok, err := r.store.ToolExecutions().Reserve(ctx, exec)
	if err != nil {
		return Result{}, fmt.Errorf("toolruntime: reserve execution: %w", err)
	}
	if !ok {
		switch existing.Status {
		case models.ToolExecSucceeded, models.ToolExecFailed:
			return cachedResult(existing), nil
		case models.ToolExecRunning:
			return Result{Status: StatusError, Error: "IN_FLIGHT", LatencyMS: time.Since(start).Milliseconds()}, nil
		default:
			exec = existing
		}
	}

	// Step 5: reserved confirmation check.
	reserved, err := r.confirm.ConsumeReservation(ctx, req.SessionID, req.ToolName, req.Args)
	if err != nil {
		return Result{}, fmt.Errorf("toolruntime: consume reservation: %w", err)
	}
	policyAllowed := reserved != nil
	var policyDecisionID string

	if !policyAllowed {
		// Step 6: policy.
		redactedArgs := redact.Value(req.Args)
		check := policyengine.CheckFromSpec(spec, found, req.TargetEntity, req.IntentSummary, redactedArgs.Value.(map[string]any))
		decision := policyengine.Evaluate(check)

		policyDecisionID = uuid.NewString()
		if err := r.store.PolicyDecisions().Insert(ctx, &models.PolicyDecision{
			ID:         policyDecisionID,
			SessionID:  req.SessionID,
			UserID:     req.UserID,
			ToolName:   req.ToolName,
			Decision:   decision.Type,
			RiskScore:  decision.RiskScore,
			ReasonCode: decision.ReasonCode,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return Result{}, fmt.Errorf("toolruntime: persist policy decision: %w", err)
		}

		switch decision.Type {
		case models.DecisionDeny:
			if err := r.store.ToolExecutions().Transition(ctx, exec.ID, exec.Status, models.ToolExecPolicyDenied, nil); err != nil {
				return Result{}, fmt.Errorf("toolruntime: transition policy denied: %w", err)
			}
			r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", time.Since(start).Milliseconds())
			return Result{Status: StatusDenied, Error: decision.ReasonCode, PolicyDecisionID: policyDecisionID, LatencyMS: time.Since(start).Milliseconds()}, nil

		case models.DecisionAllowWithConfirm, models.DecisionEscalate:
			if err := r.store.ToolExecutions().Transition(ctx, exec.ID, exec.Status, models.ToolExecAwaitingConfirm, nil); err != nil {
				return Result{}, fmt.Errorf("toolruntime: transition awaiting confirmation: %w", err)
			}
			conf, err := r.confirm.Create(ctx, confirmation.CreateInput{
				ToolExecutionID: exec.ID,
				SessionID:       req.SessionID,
				UserID:          req.UserID,
				ToolName:        req.ToolName,
				Args:            req.Args,
				DecisionType:    decision.Type,
				Prompt:          decision.Prompt,
				RequiredPhrase:  decision.RequiredPhrase,
			})
			if err != nil {
				return Result{}, fmt.Errorf("toolruntime: create confirmation: %w", err)
			}
			return Result{
				Status:                StatusNeedsConfirm,
				PolicyDecisionID:      policyDecisionID,
				PendingConfirmationID: conf.ID,
				ConfirmationPrompt:    decision.Prompt,
				LatencyMS:             time.Since(start).Milliseconds(),
			}, nil
		}
	}

	// Step 7: guards.
	verdict, err := r.guards.Check(ctx, req.SessionID, req.ToolName)
	if err != nil {
		return Result{}, fmt.Errorf("toolruntime: guard check: %w", err)
	}
	if !verdict.Allowed {
		r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", time.Since(start).Milliseconds())
		return Result{Status: StatusDenied, Error: verdict.Reason, PolicyDecisionID: policyDecisionID, LatencyMS: time.Since(start).Milliseconds()}, nil
	}

	// Step 8: execute.
	runningFrom := exec.Status
	if runningFrom != models.ToolExecRunning {
		toTransition := models.ToolExecRunning
		startedAt := time.Now().UTC()
		if err := r.store.ToolExecutions().Transition(ctx, exec.ID, runningFrom, toTransition, func(e *models.ToolExecution) {
			e.StartedAt = &startedAt
		}); err != nil {
			return Result{}, fmt.Errorf("toolruntime: transition running: %w", err)
		}
	}

	handlerCtx, cancel := context.WithTimeout(ctx, r.timeout)
	data, handlerErr := handler(handlerCtx, req.Args)
	cancel()

	// Step 9: redact.
	redactedResult := redact.Value(data)
	redactedInput := redact.Value(req.Args)
	redactions := append(append([]string{}, redactedInput.RedactedPaths...), redactedResult.RedactedPaths...)

	latencyMS := time.Since(start).Milliseconds()
	finishedAt := time.Now().UTC()

	// Step 10: persist.
	redactedInputMap, _ := redactedInput.Value.(map[string]any)

	if handlerErr != nil {
		toolErr := agenterrors.New(agenterrors.KindToolHandler, handlerErr.Error(), handlerErr)
		if err := r.store.ToolExecutions().Transition(ctx, exec.ID, models.ToolExecRunning, models.ToolExecFailed, func(e *models.ToolExecution) {
			e.FinishedAt = &finishedAt
			e.Error = toolErr.Message
			e.Input = redactedInputMap
		}); err != nil {
			return Result{}, fmt.Errorf("toolruntime: transition failed: %w", err)
		}
		r.insertToolCall(ctx, req.SessionID, req.ToolName, "error", latencyMS)
		return Result{
			Status:            StatusError,
			Error:             toolErr.UserMessage(),
			LatencyMS:         latencyMS,
			RedactionsApplied: redactions,
			PolicyDecisionID:  policyDecisionID,
		}, nil
	}

	resultMap, _ := redactedResult.Value.(map[string]any)
	if err := r.store.ToolExecutions().Transition(ctx, exec.ID, models.ToolExecRunning, models.ToolExecSucceeded, func(e *models.ToolExecution) {
		e.FinishedAt = &finishedAt
		e.Result = resultMap
		e.Input = redactedInputMap
	}); err != nil {
		return Result{}, fmt.Errorf("toolruntime: transition succeeded: %w", err)
	}
	r.insertToolCall(ctx, req.SessionID, req.ToolName, "success", latencyMS)

	// Step 11: return.
	return Result{
		Status:            StatusSuccess,
		Data:              resultMap,
		LatencyMS:         latencyMS,
		RedactionsApplied: redactions,
		PolicyDecisionID:  policyDecisionID,
	}, nil
}

func cachedResult(exec *models.ToolExecution) Result {
	if exec.Status == models.ToolExecSucceeded {
		return Result{Status: StatusSuccess, Data: exec.Result}
	}
	return Result{Status: StatusError, Error: exec.Error}
}
