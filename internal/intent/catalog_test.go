package intent

import "testing"

func testCatalog() Catalog {
	return Catalog{
		"send_email": {
			Name:          "send_email",
			Description:   "send an email to someone",
			ToolName:      "send_email",
			RequiredSlots: []string{"to", "subject"},
		},
	}
}

func TestValidateForcesClarificationOnMissingSlots(t *testing.T) {
	in := Intent{Name: "send_email", Slots: map[string]any{"to": "a@example.com"}, Confidence: 0.9}
	out := Validate(in, testCatalog())
	if !out.NeedsClarification {
		t.Fatal("expected clarification to be forced when subject is missing")
	}
	if out.ClarifyingQuestion == "" {
		t.Fatal("expected a clarifying question to be computed")
	}
}

func TestValidatePassesThroughCompleteSlots(t *testing.T) {
	in := Intent{
		Name:       "send_email",
		Slots:      map[string]any{"to": "a@example.com", "subject": "hi"},
		Confidence: 0.95,
	}
	out := Validate(in, testCatalog())
	if out.NeedsClarification {
		t.Fatalf("expected no clarification needed, got %+v", out)
	}
}

func TestValidateMapsUnknownNameToUnknown(t *testing.T) {
	in := Intent{Name: "do_something_unrecognized", Confidence: 0.5}
	out := Validate(in, testCatalog())
	if out.Name != UnknownIntentName || !out.NeedsClarification {
		t.Fatalf("expected unknown mapping with clarification, got %+v", out)
	}
}

func TestDecodeRawIntentTrimsSurroundingProse(t *testing.T) {
	text := "Here you go: {\"name\":\"send_email\",\"slots\":{\"to\":\"a@example.com\"},\"confidence\":0.8,\"needs_clarification\":false} thanks!"
	got, err := decodeRawIntent(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "send_email" || got.Slots["to"] != "a@example.com" {
		t.Fatalf("unexpected decode result: %+v", got)
	}
}
