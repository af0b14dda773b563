package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eweinhaus/VideoGen-sub002/internal/providers/prompt"
)

type regenerateRequest struct {
	ClipIndex   *int          `json:"clip_index"`
	ClipIndices []int         `json:"clip_indices"`
	Instruction string        `json:"instruction"`
	History     []prompt.Turn `json:"conversation_history"`
}

func (r regenerateRequest) targets() []int {
	if len(r.ClipIndices) > 0 {
		return r.ClipIndices
	}
	if r.ClipIndex != nil {
		return []int{*r.ClipIndex}
	}
	return nil
}

// RegenerateClip accepts a regeneration instruction for one or more clips of
// a completed job. Targets come from clip_index/clip_indices, or from the
// instruction text itself when neither is given.
func (a *App) RegenerateClip(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload", false)
		return
	}
	result, err := a.Engine.Regenerate(r.Context(), jobID, req.targets(), req.Instruction, req.History)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, result)
}

type previewRequest struct {
	Instruction string `json:"instruction"`
}

// RegeneratePreview resolves a multi-clip instruction without executing it.
func (a *App) RegeneratePreview(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload", false)
		return
	}
	preview, err := a.Engine.Preview(r.Context(), jobID, req.Instruction)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, preview)
}

type confirmRequest struct {
	Targets     []int         `json:"targets"`
	Instruction string        `json:"instruction"`
	History     []prompt.Turn `json:"conversation_history"`
}

// RegenerateConfirm executes a previously previewed multi-clip regeneration
// against its explicit target set.
func (a *App) RegenerateConfirm(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload", false)
		return
	}
	if len(req.Targets) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "targets are required", false)
		return
	}
	result, err := a.Engine.Regenerate(r.Context(), jobID, req.Targets, req.Instruction, req.History)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, result)
}

type revertRequest struct {
	VersionNumber int `json:"version_number"`
}

// ClipRevert flips a clip back to an earlier version and recomposes.
func (a *App) ClipRevert(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	clipIndex, err := strconv.Atoi(chi.URLParam(r, "clip_index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "clip_index must be an integer", false)
		return
	}
	var req revertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload", false)
		return
	}
	if req.VersionNumber < 1 {
		a.error(w, http.StatusBadRequest, "bad_request", "version_number must be at least 1", false)
		return
	}
	if err := a.Engine.Revert(r.Context(), jobID, clipIndex, req.VersionNumber); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":         jobID,
		"clip_index":     clipIndex,
		"version_number": req.VersionNumber,
		"status":         "recomposing",
	})
}
