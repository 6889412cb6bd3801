// Package intent implements structured intent extraction: a fixed catalog
// of recognized intents, an LLM-backed Parser constrained to emit JSON
// against that catalog, and the post-hoc missing-slot validation the
// parser's own output can't be trusted to have applied.
package intent

// CatalogEntry is one recognized intent: the tool it drives and the slots
// that must be filled before planning can proceed.
type CatalogEntry struct {
	Name          string
	Description   string
	ToolName      string
	RequiredSlots []string
	// TargetEntity names the kind of thing this tool acts on (e.g. "file"),
	// fed to the Policy Engine's Check.TargetEntity so a destructive
	// escalation's required_phrase reads "CONFIRM DELETE FILE" rather than
	// "CONFIRM DELETE " with no entity.
	TargetEntity string
}

// Catalog is the fixed, static set of intents the core recognizes.
// UnknownIntentName is never a key here; a parser that can't map an
// utterance to a catalog entry returns UnknownIntentName instead.
type Catalog map[string]CatalogEntry

// UnknownIntentName is what parsers and the Planner use when an utterance
// doesn't match any catalog entry.
const UnknownIntentName = "unknown"

// Intent is the Parser's structured output, after post-validation.
type Intent struct {
	Name                string
	Slots               map[string]any
	Confidence          float64
	NeedsClarification  bool
	ClarifyingQuestion  string
}

// Validate forces NeedsClarification when catalog declares required slots
// the parser's output didn't fill and didn't itself flag as needing
// clarification.
func Validate(in Intent, catalog Catalog) Intent {
	if in.NeedsClarification || in.Name == UnknownIntentName {
		return in
	}
	entry, ok := catalog[in.Name]
	if !ok {
		in.Name = UnknownIntentName
		in.NeedsClarification = true
		in.ClarifyingQuestion = "I'm not sure what you'd like me to do. Could you rephrase that?"
		return in
	}
	missing := missingSlots(entry, in.Slots)
	if len(missing) > 0 {
		in.NeedsClarification = true
		in.ClarifyingQuestion = clarifyingQuestion(missing)
	}
	return in
}

func missingSlots(entry CatalogEntry, slots map[string]any) []string {
	var missing []string
	for _, required := range entry.RequiredSlots {
		v, ok := slots[required]
		if !ok || v == nil || v == "" {
			missing = append(missing, required)
		}
	}
	return missing
}

func clarifyingQuestion(missing []string) string {
	if len(missing) == 1 {
		return "Could you tell me the " + missing[0] + "?"
	}
	q := "Could you tell me the following: "
	for i, m := range missing {
		if i > 0 {
			q += ", "
		}
		q += m
	}
	return q + "?"
}
