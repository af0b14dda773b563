package regen

import (
	"math/rand"
	"strings"
)

// Temperature governs how far a regeneration may deviate from the original
// clip. The LLM picks it; two local policies adjust and interpret it.

const (
	// seedReuseCeiling is the temperature below which the original clip's
	// seed is reused to maximize visual consistency.
	seedReuseCeiling = 0.5

	// consistencyTriggerTemp and consistencyClampedTemp implement the
	// consistency override: an "almost identical" instruction with a
	// returned temperature at or above the trigger is clamped back into the
	// 0.2-0.3 band.
	consistencyTriggerTemp = 0.35
	consistencyClampedTemp = 0.25
)

// consistencySignals are instruction phrasings that demand an almost
// identical result. Deliberately narrow: "keep everything the same but ..."
// still permits a noticeable local change and is not in the list.
var consistencySignals = []string{
	"almost exactly the same",
	"almost identical",
	"exactly the same",
	"nearly identical",
	"as close as possible to the original",
	"barely change",
}

// HasConsistencySignal reports whether the instruction demands an
// almost-identical result.
func HasConsistencySignal(instruction string) bool {
	lowered := strings.ToLower(instruction)
	for _, signal := range consistencySignals {
		if strings.Contains(lowered, signal) {
			return true
		}
	}
	return false
}

// ClampTemperature applies the consistency override to an LLM-chosen
// temperature.
func ClampTemperature(instruction string, temperature float64) float64 {
	if HasConsistencySignal(instruction) && temperature >= consistencyTriggerTemp {
		return consistencyClampedTemp
	}
	return temperature
}

// ChooseSeed picks the generation seed for a regeneration: low temperatures
// reuse the original clip's seed, high ones draw a fresh one.
func ChooseSeed(temperature float64, originalSeed int64) int64 {
	if temperature < seedReuseCeiling && originalSeed != 0 {
		return originalSeed
	}
	return rand.Int63()
}
