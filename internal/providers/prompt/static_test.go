package prompt

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStaticModifierSplicesInstruction(t *testing.T) {
	res, err := NewStaticModifier().ModifyPrompt(context.Background(), ModifyRequest{
		OriginalPrompt: "a neon city at dusk",
		Instruction:    "make the streets wet",
	})
	if err != nil {
		t.Fatalf("ModifyPrompt: %v", err)
	}
	if res.Prompt != "a neon city at dusk. Make the streets wet." {
		t.Fatalf("prompt = %q", res.Prompt)
	}
	if res.Temperature <= 0 || res.Temperature > 1 {
		t.Fatalf("temperature = %v out of range", res.Temperature)
	}
}

func TestStaticModifierHandlesMultiByteInstruction(t *testing.T) {
	res, err := NewStaticModifier().ModifyPrompt(context.Background(), ModifyRequest{
		OriginalPrompt: "une ville la nuit",
		Instruction:    "éclaircir l'arrière-plan",
	})
	if err != nil {
		t.Fatalf("ModifyPrompt: %v", err)
	}
	if !utf8.ValidString(res.Prompt) {
		t.Fatalf("prompt %q is not valid UTF-8", res.Prompt)
	}
	if !strings.Contains(res.Prompt, "Éclaircir l'arrière-plan") {
		t.Fatalf("prompt = %q, want the instruction capitalized intact", res.Prompt)
	}
}

func TestStaticModifierTemperatureBands(t *testing.T) {
	cases := []struct {
		instruction string
		want        float64
	}{
		{"keep everything exactly the same, just fix the hand", 0.25},
		{"make it slightly warmer", 0.35},
		{"make it darker", 0.45},
		{"completely different style", 0.9},
		{"add a dragon", 0.65},
	}
	for _, tc := range cases {
		if got := heuristicTemperature(tc.instruction); got != tc.want {
			t.Fatalf("heuristicTemperature(%q) = %v, want %v", tc.instruction, got, tc.want)
		}
	}
}
