package prompt

import (
	"context"
	"encoding/json"
	"strings"
)

// DefaultTemperature is applied when a provider response cannot be parsed as
// the structured result and the raw text is used as the prompt instead.
const DefaultTemperature = 0.7

// MaxHistoryTurns bounds how much conversation history travels to the LLM.
const MaxHistoryTurns = 3

// Turn is one prior exchange in the user's refinement conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModifyRequest asks the LLM to rewrite a clip prompt per a user instruction.
type ModifyRequest struct {
	OriginalPrompt string
	Instruction    string
	History        []Turn
}

// ModifyResult is the structured LLM answer: the rewritten prompt plus the
// temperature the model judged appropriate for the requested deviation.
type ModifyResult struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Reasoning   string  `json:"reasoning"`
	Provider    string  `json:"-"`
}

// Modifier is the modifyPromptWithLLM contract.
type Modifier interface {
	ModifyPrompt(ctx context.Context, req ModifyRequest) (*ModifyResult, error)
}

// TrimHistory keeps only the trailing MaxHistoryTurns turns.
func TrimHistory(history []Turn) []Turn {
	if len(history) <= MaxHistoryTurns {
		return history
	}
	return history[len(history)-MaxHistoryTurns:]
}

// parseModifyResult decodes the strict JSON shape. ok is false when the text
// is not parseable or the temperature is out of range; callers then fall back
// to treating the raw text as the new prompt.
func parseModifyResult(text string) (*ModifyResult, bool) {
	text = strings.TrimSpace(text)
	// Models occasionally wrap JSON in a code fence.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	var out ModifyResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, false
	}
	if strings.TrimSpace(out.Prompt) == "" {
		return nil, false
	}
	if out.Temperature < 0 || out.Temperature > 1 {
		return nil, false
	}
	return &out, true
}

// RawFallback wraps unparseable provider text per the documented contract:
// the text becomes the prompt, temperature defaults, no reasoning.
func RawFallback(text string) *ModifyResult {
	return &ModifyResult{Prompt: strings.TrimSpace(text), Temperature: DefaultTemperature}
}
