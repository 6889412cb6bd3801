package intent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is everything a Parser needs for one extraction call: the
// recognized intent catalog, the raw utterance, and assembled context.
type Request struct {
	Catalog   Catalog
	Utterance string
	ContextStr string
}

// Parser extracts a structured Intent from one utterance. Implementations
// must respect the fixed catalog: an utterance the catalog doesn't cover
// maps to UnknownIntentName rather than inventing a new intent name.
type Parser interface {
	Parse(ctx context.Context, req Request) (Intent, error)
}

// rawIntent mirrors the JSON shape every Parser implementation asks its
// model to emit.
type rawIntent struct {
	Name               string         `json:"name"`
	Slots              map[string]any `json:"slots"`
	Confidence         float64        `json:"confidence"`
	NeedsClarification bool           `json:"needs_clarification"`
	ClarifyingQuestion string         `json:"clarifying_question"`
}

func decodeRawIntent(text string) (Intent, error) {
	var raw rawIntent
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &raw); err != nil {
		return Intent{}, fmt.Errorf("intent: decode model output: %w", err)
	}
	if raw.Name == "" {
		raw.Name = UnknownIntentName
	}
	return Intent{
		Name:               raw.Name,
		Slots:              raw.Slots,
		Confidence:         raw.Confidence,
		NeedsClarification: raw.NeedsClarification,
		ClarifyingQuestion: raw.ClarifyingQuestion,
	}, nil
}

// extractJSONObject trims any leading/trailing prose a model adds around
// the JSON object it was asked to emit, taking the outermost {...} span.
func extractJSONObject(text string) string {
	start, end := -1, -1
	for i, r := range text {
		if r == '{' && start == -1 {
			start = i
		}
		if r == '}' {
			end = i
		}
	}
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// systemPrompt builds the instruction every Parser implementation sends
// ahead of the user's utterance, constraining the model to the catalog and
// to a single JSON object in response.
func systemPrompt(catalog Catalog, contextStr string) string {
	prompt := "You extract one structured intent from a user's message for a voice/text assistant.\n" +
		"Respond with a single JSON object only, matching exactly:\n" +
		`{"name": string, "slots": object, "confidence": number, "needs_clarification": bool, "clarifying_question": string}` + "\n" +
		"Recognized intents:\n"
	for name, entry := range catalog {
		prompt += fmt.Sprintf("- %s: %s (required slots: %v)\n", name, entry.Description, entry.RequiredSlots)
	}
	prompt += "If the message doesn't match any recognized intent, use name \"unknown\" and set needs_clarification to true.\n"
	if contextStr != "" {
		prompt += "Conversation context:\n" + contextStr + "\n"
	}
	return prompt
}
