// Package guards implements the Tool Runtime's non-blocking safety nets:
// a rate limiter and a loop breaker, both backed by read-only queries over
// the ToolExecution audit trail rather than in-memory counters, so they
// see the same history regardless of which process handles a request.
package guards

import (
	"context"
	"fmt"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// MaxCallsPerMinute is the rate-limit guard's default threshold.
const MaxCallsPerMinute = 10

// MaxConsecutiveFailures is the loop-breaker guard's default threshold.
const MaxConsecutiveFailures = 3

// Guards evaluates the rate-limit and loop-breaker checks for one
// (session_id, tool_name) pair ahead of a tool invocation.
type Guards struct {
	store                  store.Store
	maxCallsPerMinute       int
	maxConsecutiveFailures int
}

// New builds Guards with the default thresholds.
func New(db store.Store) *Guards {
	return &Guards{store: db, maxCallsPerMinute: MaxCallsPerMinute, maxConsecutiveFailures: MaxConsecutiveFailures}
}

// WithThresholds overrides the default thresholds, for deployments that
// tune guards.max_calls_per_minute / guards.max_consecutive_failures.
func (g *Guards) WithThresholds(maxCallsPerMinute, maxConsecutiveFailures int) *Guards {
	if maxCallsPerMinute > 0 {
		g.maxCallsPerMinute = maxCallsPerMinute
	}
	if maxConsecutiveFailures > 0 {
		g.maxConsecutiveFailures = maxConsecutiveFailures
	}
	return g
}

// Verdict is a guard's decision and, on rejection, the reason a caller can
// surface in a denial response.
type Verdict struct {
	Allowed bool
	Reason  string
}

// CheckRateLimit rejects when (sessionID, toolName) has been invoked at
// least maxCallsPerMinute times in the trailing 60 seconds.
func (g *Guards) CheckRateLimit(ctx context.Context, sessionID, toolName string) (Verdict, error) {
	count, err := g.store.ToolExecutions().CountSince(ctx, sessionID, toolName, time.Now().Add(-60*time.Second))
	if err != nil {
		return Verdict{}, fmt.Errorf("guards: count since: %w", err)
	}
	if count >= g.maxCallsPerMinute {
		return Verdict{Allowed: false, Reason: "RATE_LIMITED"}, nil
	}
	return Verdict{Allowed: true}, nil
}

// CheckLoopBreaker rejects when the most recent maxConsecutiveFailures
// invocations of (sessionID, toolName) were all non-success.
func (g *Guards) CheckLoopBreaker(ctx context.Context, sessionID, toolName string) (Verdict, error) {
	recent, err := g.store.ToolExecutions().RecentBySessionAndTool(ctx, sessionID, toolName, g.maxConsecutiveFailures)
	if err != nil {
		return Verdict{}, fmt.Errorf("guards: recent executions: %w", err)
	}
	if len(recent) < g.maxConsecutiveFailures {
		return Verdict{Allowed: true}, nil
	}
	for _, exec := range recent {
		if exec.Status == models.ToolExecSucceeded {
			return Verdict{Allowed: true}, nil
		}
	}
	return Verdict{Allowed: false, Reason: "LOOP_BROKEN"}, nil
}

// Check runs both guards and returns the first rejection encountered, or
// an allowed Verdict if neither trips. Guard rejections are not themselves
// counted toward future guard evaluations.
func (g *Guards) Check(ctx context.Context, sessionID, toolName string) (Verdict, error) {
	v, err := g.CheckRateLimit(ctx, sessionID, toolName)
	if err != nil || !v.Allowed {
		return v, err
	}
	return g.CheckLoopBreaker(ctx, sessionID, toolName)
}
