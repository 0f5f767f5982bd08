package translate

import (
	"fmt"
	"strings"
)

// Phase is one stage of the translation pipeline.
type Phase string

const (
	PhaseCorrection  Phase = "correction"
	PhaseStandard    Phase = "translation_standard"
	PhaseReflective  Phase = "translation_reflective"
	PhaseOptimize    Phase = "optimization"
)

// Temperature returns the fixed sampling temperature for a phase (spec
// §4.2: Correction 0.1, Translation 0.3, Optimization 0.5).
func Temperature(p Phase) float64 {
	switch p {
	case PhaseCorrection:
		return 0.1
	case PhaseStandard, PhaseReflective:
		return 0.3
	case PhaseOptimize:
		return 0.5
	default:
		return 0.3
	}
}

// Knobs is the six configurable prose sections threaded through every
// prompt (spec §4.2 "six prose knobs").
type Knobs struct {
	TargetLanguage string
	WorldBuilding  string
	WritingStyle   string
	Glossary       string
	Forbidden      string
	Examples       string
	CustomPrompt   string
}

var coreInstructions = map[Phase]string{
	PhaseCorrection: "You correct transcription errors, mis-segmented words, and obvious mis-hearings in the source subtitle text, without translating it. Preserve meaning and language.",
	PhaseStandard:   "You translate the given subtitle text into %s. Translate each entry independently and completely; never merge, split, or summarize across entries.",
	PhaseReflective: "You translate the given subtitle text into %s using a reflective, two-pass approach internally: first produce a literal draft, then refine it for natural phrasing, but output only the final refined translation for each entry.",
	PhaseOptimize:   "You polish the given %s subtitle translations for natural spoken delivery, correcting awkward phrasing while preserving meaning, register, and length. Do not change the language.",
}

// buildSystemPrompt composes the fixed core instruction for phase, the
// configurable section from the six knobs, and the trailing JSON rules.
func buildSystemPrompt(phase Phase, k Knobs) string {
	var b strings.Builder

	lang := k.TargetLanguage
	if lang == "" {
		lang = "the target language"
	}
	core := coreInstructions[phase]
	if strings.Contains(core, "%s") {
		core = fmt.Sprintf(core, lang)
	}
	b.WriteString(core)
	b.WriteString("\n\n")

	writeKnobSection(&b, "World/setting context", k.WorldBuilding)
	writeKnobSection(&b, "Writing style", k.WritingStyle)
	writeKnobSection(&b, "Glossary (use these terms consistently)", k.Glossary)
	writeKnobSection(&b, "Forbidden words or phrases", k.Forbidden)
	writeKnobSection(&b, "Examples", k.Examples)
	writeKnobSection(&b, "Additional instructions", k.CustomPrompt)

	b.WriteString(jsonRulesSuffix)
	return b.String()
}

func writeKnobSection(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(value)
	b.WriteString("\n\n")
}

const jsonRulesSuffix = `JSON RULES:
- Input is a JSON object mapping string indices to source text: {"0": "...", "1": "...", ...}.
- Output must be a JSON object of the exact same shape and the exact same keys.
- Counts must match: every input key must appear exactly once in the output.
- Never merge, split, omit, or reorder entries.
- Output only the JSON object, with no surrounding prose or code fences.`

// buildUserPrompt renders the batch payload as the JSON object the system
// prompt describes.
func buildUserPrompt(batch map[string]string) (string, error) {
	return encodeBatchJSON(batch)
}
