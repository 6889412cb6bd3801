// Package planner maps a validated Intent onto the single tool invocation
// it drives. It is a pure function: no I/O, no randomness, multi-step
// plans are out of scope for this core.
package planner

import "github.com/jadhavgaurav/agentcore/internal/intent"

// Step is the plan the Orchestrator hands to the Tool Runtime.
type Step struct {
	ToolName      string
	Args          map[string]any
	IntentSummary string
	TargetEntity  string
}

// Plan maps in onto at most one Step. ok is false when the intent needs
// clarification or doesn't resolve to a catalog entry, in which case the
// caller should return a clarifying response instead of executing
// anything.
func Plan(in intent.Intent, catalog intent.Catalog) (Step, bool) {
	if in.NeedsClarification || in.Name == intent.UnknownIntentName {
		return Step{}, false
	}
	entry, ok := catalog[in.Name]
	if !ok {
		return Step{}, false
	}
	return Step{
		ToolName:      entry.ToolName,
		Args:          in.Slots,
		IntentSummary: entry.Description,
		TargetEntity:  entry.TargetEntity,
	}, true
}
