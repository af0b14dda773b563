// Package regen implements clip regeneration: instruction resolution,
// template-vs-LLM prompt editing, versioning and recomposition.
package regen

import "strings"

// Template is one deterministic instruction-to-prompt transform. Matching a
// template skips the LLM call entirely, so the edit costs nothing extra and
// resolves near-instantly.
type Template struct {
	ID          string
	Triggers    []string
	Modifier    string
	Temperature float64
}

// Apply appends the template's style modifier to the original clip prompt.
func (t Template) Apply(prompt string) string {
	return prompt + ", " + t.Modifier
}

// templateLibrary is the fixed transform library. Order matters: the first
// template whose trigger appears in the instruction wins.
var templateLibrary = []Template{
	{
		ID:          "nighttime",
		Triggers:    []string{"nighttime", "night time", "at night", "nightfall"},
		Modifier:    "nighttime scene, dark sky, moonlight, cool blue tones",
		Temperature: 0.4,
	},
	{
		ID:          "daytime",
		Triggers:    []string{"daytime", "day time", "in daylight", "broad daylight"},
		Modifier:    "bright daytime scene, natural sunlight, clear sky",
		Temperature: 0.4,
	},
	{
		ID:          "brighter",
		Triggers:    []string{"brighter", "more light", "lighten"},
		Modifier:    "brightly lit, increased exposure, vivid highlights",
		Temperature: 0.3,
	},
	{
		ID:          "darker",
		Triggers:    []string{"darker", "more shadow", "dimmer", "moodier"},
		Modifier:    "low-key lighting, deep shadows, moody atmosphere",
		Temperature: 0.3,
	},
	{
		ID:          "slow_motion",
		Triggers:    []string{"slow motion", "slow-mo", "slowmo"},
		Modifier:    "slow motion, high frame rate, fluid dreamlike movement",
		Temperature: 0.35,
	},
	{
		ID:          "black_white",
		Triggers:    []string{"black and white", "black & white", "monochrome", "grayscale"},
		Modifier:    "black and white, monochrome film look, rich contrast",
		Temperature: 0.3,
	},
	{
		ID:          "vibrant",
		Triggers:    []string{"more vibrant", "more colorful", "saturate", "punchier colors"},
		Modifier:    "vibrant saturated colors, bold palette, high contrast",
		Temperature: 0.35,
	},
	{
		ID:          "cinematic",
		Triggers:    []string{"more cinematic", "film look", "movie look"},
		Modifier:    "cinematic composition, anamorphic lens, film grain, shallow depth of field",
		Temperature: 0.35,
	},
	{
		ID:          "closeup",
		Triggers:    []string{"close up", "close-up", "closer shot", "zoom in"},
		Modifier:    "close-up framing, tight shot, detailed subject focus",
		Temperature: 0.45,
	},
	{
		ID:          "wide_shot",
		Triggers:    []string{"wide shot", "wider shot", "zoom out", "pull back"},
		Modifier:    "wide establishing shot, expansive framing",
		Temperature: 0.45,
	},
}

// MatchTemplate finds the first library template triggered by the
// instruction. The match is a plain case-insensitive substring check so it
// stays deterministic and explainable.
func MatchTemplate(instruction string) (Template, bool) {
	lowered := strings.ToLower(instruction)
	for _, tpl := range templateLibrary {
		for _, trigger := range tpl.Triggers {
			if strings.Contains(lowered, trigger) {
				return tpl, true
			}
		}
	}
	return Template{}, false
}

// TemplateByID looks a template up by its stable identifier.
func TemplateByID(id string) (Template, bool) {
	for _, tpl := range templateLibrary {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return Template{}, false
}
