package domain

import "time"

// RegenState tracks where an in-flight regeneration sits in its
// matching → prompt_ready → generating → recomposing sequence. The state
// lives on the per-(job, clip) lock row so it survives a worker restart and
// is visible to the catch-up snapshot.
type RegenState string

const (
	RegenStateMatching    RegenState = "matching"
	RegenStatePromptReady RegenState = "prompt_ready"
	RegenStateGenerating  RegenState = "generating"
	RegenStateRecomposing RegenState = "recomposing"
)

// RegenerationEvent is one append-only audit row per regeneration attempt.
// The cost ledger's running totals and the analytics aggregates are derived
// from these rows, never stored separately.
type RegenerationEvent struct {
	ID                string
	JobID             string
	ClipIndex         int
	Instruction       string
	MatchedTemplateID string // empty when the LLM path was taken
	Cost              float64
	Success           bool
	Error             string
	CreatedAt         time.Time
}

// RegenerationStats are the derived analytics aggregates over the
// regeneration ledger.
type RegenerationStats struct {
	Total             int     `json:"total"`
	Succeeded         int     `json:"succeeded"`
	SuccessRate       float64 `json:"success_rate"`
	AverageCost       float64 `json:"average_cost"`
	TemplateMatchRate float64 `json:"template_match_rate"`
	CommonInstruction string  `json:"most_common_instruction"`
}
