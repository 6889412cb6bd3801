package guards

import (
	"context"
	"testing"
	"time"

	"github.com/jadhavgaurav/agentcore/internal/store"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

func reserveExec(t *testing.T, db store.Store, id string, status models.ToolExecutionStatus, finished bool) {
	t.Helper()
	now := time.Now()
	exec := &models.ToolExecution{
		ID:             id + "-exec",
		SessionID:      "sess-1",
		UserID:         "user-1",
		ToolName:       "list_files",
		Status:         models.ToolExecRequested,
		IdempotencyKey: id,
		StartedAt:      &now,
	}
	if _, _, err := db.ToolExecutions().Reserve(context.Background(), exec); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if status != models.ToolExecRequested {
		mutate := func(e *models.ToolExecution) {
			if finished {
				e.FinishedAt = &now
			}
		}
		from := models.ToolExecRequested
		if status == models.ToolExecSucceeded || status == models.ToolExecFailed {
			if err := db.ToolExecutions().Transition(context.Background(), exec.ID, from, models.ToolExecRunning, nil); err != nil {
				t.Fatalf("transition to running: %v", err)
			}
			from = models.ToolExecRunning
		}
		if err := db.ToolExecutions().Transition(context.Background(), exec.ID, from, status, mutate); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
}

func TestCheckRateLimitRejectsAtThreshold(t *testing.T) {
	db := store.NewMemStore()
	g := New(db).WithThresholds(3, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reserveExec(t, db, string(rune('a'+i)), models.ToolExecRequested, false)
	}

	v, err := g.CheckRateLimit(ctx, "sess-1", "list_files")
	if err != nil {
		t.Fatalf("check rate limit: %v", err)
	}
	if v.Allowed {
		t.Fatal("expected rate limit to reject at the threshold")
	}
}

func TestCheckLoopBreakerRejectsOnAllFailures(t *testing.T) {
	db := store.NewMemStore()
	g := New(db).WithThresholds(100, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reserveExec(t, db, string(rune('a'+i)), models.ToolExecFailed, true)
	}

	v, err := g.CheckLoopBreaker(ctx, "sess-1", "list_files")
	if err != nil {
		t.Fatalf("check loop breaker: %v", err)
	}
	if v.Allowed {
		t.Fatal("expected loop breaker to reject after 3 consecutive failures")
	}
}

func TestCheckLoopBreakerAllowsWithASuccess(t *testing.T) {
	db := store.NewMemStore()
	g := New(db).WithThresholds(100, 3)
	ctx := context.Background()

	reserveExec(t, db, "a", models.ToolExecFailed, true)
	reserveExec(t, db, "b", models.ToolExecSucceeded, true)
	reserveExec(t, db, "c", models.ToolExecFailed, true)

	v, err := g.CheckLoopBreaker(ctx, "sess-1", "list_files")
	if err != nil {
		t.Fatalf("check loop breaker: %v", err)
	}
	if !v.Allowed {
		t.Fatal("expected loop breaker to allow when one of the last three succeeded")
	}
}
