package regen

import "testing"

func TestClampTemperatureConsistencyOverride(t *testing.T) {
	got := ClampTemperature("make it almost identical, just fix the lighting", 0.8)
	if got < 0.2 || got > 0.3 {
		t.Fatalf("clamped temperature = %v, want within [0.2, 0.3]", got)
	}
}

func TestClampTemperatureKeepsLowValues(t *testing.T) {
	if got := ClampTemperature("almost identical please", 0.25); got != 0.25 {
		t.Fatalf("temperature = %v, want 0.25 untouched", got)
	}
}

func TestClampTemperatureIgnoresLooseInstructions(t *testing.T) {
	// "keep everything the same but ..." still allows a visible local change
	// and must not trigger the override.
	if got := ClampTemperature("keep everything the same but fix the background", 0.4); got != 0.4 {
		t.Fatalf("temperature = %v, want 0.4 untouched", got)
	}
}

func TestChooseSeedReusesBelowThreshold(t *testing.T) {
	if got := ChooseSeed(0.4, 12345); got != 12345 {
		t.Fatalf("seed = %d, want original 12345 reused", got)
	}
}

func TestChooseSeedFreshAtHighTemperature(t *testing.T) {
	if got := ChooseSeed(0.7, 12345); got == 12345 {
		t.Fatal("high temperature must draw a fresh seed")
	}
}

func TestEstimateCost(t *testing.T) {
	near := func(got, want float64) bool {
		diff := got - want
		return diff < 1e-9 && diff > -1e-9
	}
	if single := EstimateCost(1, false, 0.15); !near(single, clipGenerationCost+llmModifyCost) {
		t.Fatalf("single LLM estimate = %v", single)
	}
	if templated := EstimateCost(1, true, 0.15); !near(templated, clipGenerationCost) {
		t.Fatalf("template estimate = %v, want no LLM fee", templated)
	}
	if batch := EstimateCost(2, true, 0.15); !near(batch, 2*clipGenerationCost*0.85) {
		t.Fatalf("batch estimate = %v, want %v", batch, 2*clipGenerationCost*0.85)
	}
	if got := EstimateCost(2, true, 0); !near(got, 2*clipGenerationCost) {
		t.Fatalf("zero-discount estimate = %v, want aggregate unchanged", got)
	}
}
