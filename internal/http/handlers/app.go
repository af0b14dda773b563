// Package handlers holds the HTTP API surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/eventhub"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
	"github.com/eweinhaus/VideoGen-sub002/internal/regen"
)

// PipelineEnqueuer starts pipeline runs; satisfied by *queue.Client.
type PipelineEnqueuer interface {
	EnqueuePipelineRun(ctx context.Context, p queue.PipelinePayload) error
}

// App bundles the handler dependencies.
type App struct {
	Jobs     domain.JobRepository
	Stages   domain.StageRepository
	Versions domain.VersionRepository
	Regens   domain.RegenRepository
	Engine   *regen.Engine
	Hub      *eventhub.Hub
	Snapshot eventhub.SnapshotSource
	Tasks    PipelineEnqueuer
	Logger   infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string, retryable bool) {
	a.json(w, code, map[string]any{
		"error":     errCode,
		"message":   message,
		"retryable": retryable,
	})
}

// fail maps a domain error onto its HTTP status per the error taxonomy.
func (a *App) fail(w http.ResponseWriter, err error) {
	retryable := domain.Retryable(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error(), false)
	case errors.Is(err, domain.ErrBudgetExceeded):
		a.error(w, http.StatusPaymentRequired, "budget_exceeded", err.Error(), false)
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden", err.Error(), false)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error(), true)
	default:
		a.Logger.Error().Err(err).Msg("http: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error", retryable)
	}
}
