package prompt

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const staticProviderName = "static"

// StaticModifier is the deterministic fallback used when no LLM is
// configured or the configured one is unreachable. It splices the
// instruction into the original prompt and picks a temperature from the
// instruction's apparent intent.
type StaticModifier struct{}

func NewStaticModifier() *StaticModifier {
	return &StaticModifier{}
}

func (s *StaticModifier) ModifyPrompt(ctx context.Context, req ModifyRequest) (*ModifyResult, error) {
	c := cases.Title(language.Und)
	instruction := strings.TrimSpace(strings.TrimSuffix(req.Instruction, "."))
	modified := strings.TrimSpace(req.OriginalPrompt)
	if instruction != "" {
		first, size := utf8.DecodeRuneInString(instruction)
		modified = fmt.Sprintf("%s. %s.", strings.TrimSuffix(modified, "."), c.String(string(first))+instruction[size:])
	}
	temperature := heuristicTemperature(req.Instruction)
	return &ModifyResult{
		Prompt:      modified,
		Temperature: temperature,
		Reasoning:   fmt.Sprintf("applied instruction verbatim at temperature %.2f", temperature),
		Provider:    staticProviderName,
	}, nil
}

// heuristicTemperature maps instruction wording onto the same deviation bands
// the LLM is prompted with.
func heuristicTemperature(instruction string) float64 {
	lower := strings.ToLower(instruction)
	switch {
	case containsAny(lower, "exactly the same", "almost the same", "keep everything", "identical", "just fix", "only fix"):
		return 0.25
	case containsAny(lower, "completely", "totally different", "from scratch", "start over", "regenerate"):
		return 0.9
	case containsAny(lower, "slightly", "a bit", "subtle", "a little"):
		return 0.35
	case containsAny(lower, "darker", "brighter", "nighttime", "daytime", "color", "lighting"):
		return 0.45
	default:
		return 0.65
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var _ Modifier = (*StaticModifier)(nil)
