package planner

import (
	"testing"

	"github.com/jadhavgaurav/agentcore/internal/intent"
)

func catalog() intent.Catalog {
	return intent.Catalog{
		"send_email": {
			Name:          "send_email",
			Description:   "send an email",
			ToolName:      "send_email",
			RequiredSlots: []string{"to", "subject"},
		},
	}
}

func TestPlanEmitsOneStepForKnownIntent(t *testing.T) {
	in := intent.Intent{Name: "send_email", Slots: map[string]any{"to": "a@example.com", "subject": "hi"}}
	step, ok := Plan(in, catalog())
	if !ok {
		t.Fatal("expected a plan step")
	}
	if step.ToolName != "send_email" || step.Args["to"] != "a@example.com" {
		t.Fatalf("unexpected step: %+v", step)
	}
}

func TestPlanReturnsFalseWhenClarificationNeeded(t *testing.T) {
	in := intent.Intent{Name: "send_email", NeedsClarification: true}
	_, ok := Plan(in, catalog())
	if ok {
		t.Fatal("expected no plan when clarification is needed")
	}
}

func TestPlanReturnsFalseForUnknownIntent(t *testing.T) {
	in := intent.Intent{Name: intent.UnknownIntentName}
	_, ok := Plan(in, catalog())
	if ok {
		t.Fatal("expected no plan for the unknown intent")
	}
}
