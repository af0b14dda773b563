package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
)

type jobCreateRequest struct {
	Prompt       string `json:"prompt"`
	SongURL      string `json:"song_url"`
	VideoModel   string `json:"video_model"`
	AspectRatio  string `json:"aspect_ratio"`
	Template     string `json:"template"`
	CharacterRef string `json:"character_ref"`
}

type jobCreateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (a *App) JobCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload", false)
		return
	}
	if req.Prompt == "" || req.SongURL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt and song_url are required", false)
		return
	}
	if req.VideoModel == "" {
		req.VideoModel = "standard"
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		Status:       domain.JobStatusQueued,
		Prompt:       req.Prompt,
		SongURL:      req.SongURL,
		VideoModel:   req.VideoModel,
		AspectRatio:  req.AspectRatio,
		Template:     req.Template,
		CharacterRef: req.CharacterRef,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.Tasks.EnqueuePipelineRun(r.Context(), queue.PipelinePayload{JobID: job.ID}); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, jobCreateResponse{JobID: job.ID, Status: string(job.Status)})
}

type stageDTO struct {
	Stage     string          `json:"stage"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Error     string          `json:"error,omitempty"`
	Cost      float64         `json:"cost"`
	StartedAt string          `json:"started_at,omitempty"`
}

func (a *App) JobGet(w http.ResponseWriter, r *http.Request) {
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
	stages := make([]stageDTO, 0, len(records))
	for _, rec := range records {
		dto := stageDTO{
			Stage:    string(rec.Stage),
			Status:   string(rec.Status),
			Metadata: rec.Metadata,
			Error:    rec.Error,
			Cost:     rec.Cost,
		}
		if !rec.StartedAt.IsZero() {
			dto.StartedAt = rec.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		stages = append(stages, dto)
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":                          job.ID,
		"status":                      job.Status,
		"current_stage":               job.CurrentStage,
		"progress":                    job.Progress,
		"estimated_remaining_seconds": job.EstimatedRemaining,
		"total_cost":                  job.TotalCost,
		"video_model":                 job.VideoModel,
		"aspect_ratio":                job.AspectRatio,
		"template":                    job.Template,
		"video_url":                   job.VideoURL,
		"duration":                    job.Duration,
		"stages":                      stages,
	})
}

func (a *App) ClipVersions(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	clipIndex, err := strconv.Atoi(chi.URLParam(r, "clip_index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "clip_index must be an integer", false)
		return
	}
	if _, err := a.Jobs.GetByID(r.Context(), jobID); err != nil {
		a.fail(w, err)
		return
	}
	versions, err := a.Versions.ListByClip(r.Context(), jobID, clipIndex)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		out = append(out, map[string]any{
			"version_number":   v.VersionNumber,
			"video_url":        v.VideoURL,
			"thumbnail_url":    v.ThumbnailURL,
			"prompt":           v.Prompt,
			"user_instruction": v.UserInstruction,
			"seed":             v.Seed,
			"cost":             v.Cost,
			"duration":         v.Duration,
			"is_current":       v.IsCurrent,
			"created_at":       v.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"clip_index": clipIndex, "versions": out})
}
