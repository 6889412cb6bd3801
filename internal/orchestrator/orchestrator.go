// Package orchestrator implements the per-turn pipeline: persist the user
// message, resolve any pending confirmation, assemble context, parse
// intent, plan, execute via the Tool Runtime, summarize, and persist the
// assistant reply. One Orchestrator call corresponds to one user
// utterance.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jadhavgaurav/agentcore/internal/confirmation"
	"github.com/jadhavgaurav/agentcore/internal/intent"
	"github.com/jadhavgaurav/agentcore/internal/memory"
	"github.com/jadhavgaurav/agentcore/internal/messagestore"
	"github.com/jadhavgaurav/agentcore/internal/planner"
	"github.com/jadhavgaurav/agentcore/internal/sessions"
	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/internal/toolruntime"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// TurnDeadline bounds one whole turn (default overall deadline of 300s).
const TurnDeadline = 300 * time.Second

// contextMessageCount is how many recent messages get pulled into context.
const contextMessageCount = 10

// contextTurnCount is how many of those messages are serialized into the
// context string ("last three turns").
const contextTurnCount = 3

// memoryTopK is the fixed retrieval breadth for turn-context memories.
const memoryTopK = 5

var contextMemoryTypes = []models.MemoryType{
	models.MemoryFact, models.MemoryPreference, models.MemoryTask,
	models.MemorySummary, models.MemoryNote,
}

// TurnRequest is one user utterance.
type TurnRequest struct {
	SessionID      string
	UserID         string
	Content        string
	Modality       models.Modality
	IdempotencyKey string
	TraceID        string
}

// PendingConfirmation is surfaced to a transport layer so it can prompt
// the user and correlate their next reply.
type PendingConfirmation struct {
	ID     string
	Prompt string
}

// Response is what one turn produces.
type Response struct {
	AssistantText       string
	ShouldSpeak         bool
	Metadata            map[string]any
	PendingConfirmation *PendingConfirmation
}

// Orchestrator composes every leaf component into the turn pipeline.
type Orchestrator struct {
	store    store.Store
	confirm  *confirmation.Manager
	memory   *memory.Manager
	parser   intent.Parser
	catalog  intent.Catalog
	runtime  *toolruntime.Runtime
	locker   sessions.Locker
}

// Deps bundles an Orchestrator's collaborators.
type Deps struct {
	Store    store.Store
	Confirm  *confirmation.Manager
	Memory   *memory.Manager
	Parser   intent.Parser
	Catalog  intent.Catalog
	Runtime  *toolruntime.Runtime
	// Locker defaults to an in-process sessions.LocalLocker when nil.
	Locker sessions.Locker
}

// New builds an Orchestrator from deps.
func New(deps Deps) *Orchestrator {
	locker := deps.Locker
	if locker == nil {
		locker = sessions.NewLocalLocker(TurnDeadline)
	}
	return &Orchestrator{
		store:   deps.Store,
		confirm: deps.Confirm,
		memory:  deps.Memory,
		parser:  deps.Parser,
		catalog: deps.Catalog,
		runtime: deps.Runtime,
		locker:  locker,
	}
}

// HandleTurn runs the full pipeline for req.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, TurnDeadline)
	defer cancel()

	if err := o.locker.Lock(ctx, req.SessionID); err != nil {
		return nil, fmt.Errorf("orchestrator: acquire session lock: %w", err)
	}
	defer o.locker.Unlock(req.SessionID)

	// Step 1: derive a stable idempotency key (caller-supplied, else
	// content-derived) and open a trace.
	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = messagestore.DefaultIdempotencyKey(req.SessionID, req.Content)
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	// Step 2: persist user message, with duplicate-replay by idempotency
	// key. On a retry SaveUserMessage returns the original row, carrying
	// the original trace_id rather than the one just minted above, so the
	// replay check below and everything downstream must use that one.
	savedMsg, err := messagestore.SaveUserMessage(ctx, o.store, req.SessionID, req.UserID, req.Content, req.Modality, idemKey, traceID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: save user message: %w", err)
	}
	traceID = savedMsg.TraceID
	if existingReply, err := o.store.Messages().GetAssistantByTraceID(ctx, req.SessionID, traceID); err == nil {
		return &Response{AssistantText: existingReply.Content, ShouldSpeak: req.Modality == models.ModalityVoice}, nil
	} else if !store.IsNotFound(err) {
		return nil, fmt.Errorf("orchestrator: check for replayed reply: %w", err)
	}

	// Step 3: pending confirmation resolution.
	if outcome := o.resolvePendingConfirmation(ctx, req, traceID, idemKey); outcome != nil {
		return outcome.response, outcome.err()
	}

	// Step 4: context assembly.
	contextStr, err := o.assembleContext(ctx, req.SessionID, req.UserID, req.Content)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: assemble context: %w", err)
	}

	// Step 5: intent parsing.
	rawIntent, err := o.parser.Parse(ctx, intent.Request{Catalog: o.catalog, Utterance: req.Content, ContextStr: contextStr})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse intent: %w", err)
	}
	validated := intent.Validate(rawIntent, o.catalog)

	// Step 6: planning.
	step, ok := planner.Plan(validated, o.catalog)
	if !ok {
		text := validated.ClarifyingQuestion
		if text == "" {
			text = "I'm not sure what you'd like me to do. Could you rephrase that?"
		}
		return o.finishFromOutside(ctx, req, traceID, text, nil)
	}

	// Step 7: execute plan.
	result, err := o.runtime.Execute(ctx, toolruntime.Request{
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		ToolName:       step.ToolName,
		Args:           step.Args,
		IdempotencyKey: idemKey,
		TraceID:        traceID,
		TargetEntity:   step.TargetEntity,
		IntentSummary:  step.IntentSummary,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: execute plan: %w", err)
	}

	// Step 8: summarize.
	text, pending := summarize(result)
	return o.finishFromOutside(ctx, req, traceID, text, pending)
}

type pendingOutcome struct {
	response *Response
	errVal   error
}

func (p *pendingOutcome) err() error { return p.errVal }

// resolvePendingConfirmation resolves a pending confirmation against the
// incoming utterance before planning runs. It returns nil when there was
// no pending confirmation to resolve, so the caller proceeds to planning
// as normal.
func (o *Orchestrator) resolvePendingConfirmation(ctx context.Context, req TurnRequest, traceID, idemKey string) *pendingOutcome {
	pending, err := o.confirm.PendingForSession(ctx, req.SessionID)
	if err != nil {
		return &pendingOutcome{errVal: fmt.Errorf("orchestrator: lookup pending confirmation: %w", err)}
	}
	if pending == nil {
		return nil
	}

	result, err := o.confirm.Resolve(ctx, pending.ID, req.UserID, req.SessionID, req.Content)
	if err != nil {
		return &pendingOutcome{errVal: fmt.Errorf("orchestrator: resolve confirmation: %w", err)}
	}

	switch result.Outcome {
	case confirmation.ResolveAccepted:
		toolResult, err := o.runtime.Execute(ctx, toolruntime.Request{
			UserID:         req.UserID,
			SessionID:      req.SessionID,
			ToolName:       result.ToolName,
			Args:           result.Args,
			IdempotencyKey: idemKey,
			TraceID:        traceID,
		})
		if err != nil {
			return &pendingOutcome{errVal: fmt.Errorf("orchestrator: execute confirmed tool: %w", err)}
		}
		text, stillPending := summarize(toolResult)
		resp, err := o.finishFromOutside(ctx, req, traceID, text, stillPending)
		return &pendingOutcome{response: resp, errVal: err}

	case confirmation.ResolveStillPending:
		resp, err := o.finishFromOutside(ctx, req, traceID, result.RePrompt, &PendingConfirmation{ID: pending.ID, Prompt: result.RePrompt})
		return &pendingOutcome{response: resp, errVal: err}

	default: // ResolveExpired, ResolveAlready
		resp, err := o.finishFromOutside(ctx, req, traceID, "That confirmation is no longer valid. Please try again.", nil)
		return &pendingOutcome{response: resp, errVal: err}
	}
}

// finishFromOutside persists the assistant reply for a turn that resolved
// entirely inside resolvePendingConfirmation (so it didn't re-save the
// user message, already done by HandleTurn before calling it).
func (o *Orchestrator) finishFromOutside(ctx context.Context, req TurnRequest, traceID, text string, pending *PendingConfirmation) (*Response, error) {
	if _, err := messagestore.SaveAssistantMessage(ctx, o.store, req.SessionID, req.UserID, text, req.Modality, traceID); err != nil {
		return nil, fmt.Errorf("orchestrator: save assistant message: %w", err)
	}
	return &Response{
		AssistantText:       text,
		ShouldSpeak:         req.Modality == models.ModalityVoice,
		PendingConfirmation: pending,
	}, nil
}

// assembleContext builds the "last three turns plus memories" context
// string handed to the intent parser.
func (o *Orchestrator) assembleContext(ctx context.Context, sessionID, userID, query string) (string, error) {
	recent, err := o.store.Messages().RecentBySession(ctx, sessionID, contextMessageCount)
	if err != nil {
		return "", fmt.Errorf("recent messages: %w", err)
	}

	var b strings.Builder
	turnsStart := len(recent) - (contextTurnCount * 2)
	if turnsStart < 0 {
		turnsStart = 0
	}
	for _, m := range recent[turnsStart:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	memories, err := o.memory.RetrieveTurnContext(ctx, userID, query, store.SearchFilter{
		Types: contextMemoryTypes,
		TopK:  memoryTopK,
	})
	if err != nil {
		return "", fmt.Errorf("retrieve memories: %w", err)
	}
	if len(memories) > 0 {
		b.WriteString("Known facts:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	return b.String(), nil
}

// summarize converts a toolruntime.Result into the assistant text and, if
// any, a pending confirmation.
func summarize(result toolruntime.Result) (string, *PendingConfirmation) {
	switch result.Status {
	case toolruntime.StatusSuccess:
		if msg, ok := result.Data["message"].(string); ok && msg != "" {
			return "Done. " + msg, nil
		}
		return "Done.", nil
	case toolruntime.StatusNeedsConfirm:
		prompt := result.ConfirmationPrompt
		if prompt == "" {
			prompt = "This action needs your confirmation. Please confirm to proceed."
		}
		return prompt, &PendingConfirmation{ID: result.PendingConfirmationID, Prompt: prompt}
	case toolruntime.StatusDenied:
		return "I cannot do that. " + result.Error, nil
	default:
		return "Something went wrong. " + result.Error, nil
	}
}
