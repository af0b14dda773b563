package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegenerationStats serves the aggregates derived from the regeneration
// ledger.
func (a *App) RegenerationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Regens.Stats(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}

// JobCosts breaks a job's spend down into stage costs and regeneration costs.
func (a *App) JobCosts(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	records, err := a.Stages.ListByJob(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	regenTotal, err := a.Regens.TotalCost(r.Context(), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}

	stageCosts := make(map[string]float64, len(records))
	var stageTotal float64
	for _, rec := range records {
		stageCosts[string(rec.Stage)] = rec.Cost
		stageTotal += rec.Cost
	}
	a.json(w, http.StatusOK, map[string]any{
		"job_id":             jobID,
		"total_cost":         job.TotalCost,
		"stage_costs":        stageCosts,
		"stage_total":        stageTotal,
		"regeneration_total": regenTotal,
	})
}
