package regen

// Flat per-operation cost rates used for client-facing estimates. Realized
// costs come back from the providers; these only have to be close enough for
// the budget check and the pre-confirmation quote.
const (
	clipGenerationCost = 0.40
	llmModifyCost      = 0.02
)

// EstimateCost quotes a regeneration before it runs. Template matches skip
// the LLM fee; targeting more than one clip earns the batch discount on the
// aggregate.
func EstimateCost(targets int, templateMatched bool, batchDiscount float64) float64 {
	if targets < 1 {
		return 0
	}
	perClip := clipGenerationCost
	if !templateMatched {
		perClip += llmModifyCost
	}
	total := float64(targets) * perClip
	if targets > 1 && batchDiscount > 0 && batchDiscount < 1 {
		total *= 1 - batchDiscount
	}
	return total
}
