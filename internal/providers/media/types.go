package media

import (
	"context"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

// Request/response contracts for the six pipeline providers. Implementations
// are external collaborators; the in-tree synthetic ones stand in when no
// provider credentials are configured and in tests.

type AudioRequest struct {
	JobID   string
	SongURL string
}

type SceneRequest struct {
	JobID    string
	Prompt   string
	Template string
	Analysis domain.AudioAnalysis
}

type ReferenceRequest struct {
	JobID        string
	SceneIndex   int
	Description  string
	CharacterRef string
	AspectRatio  string
}

type PromptRequest struct {
	JobID     string
	Prompt    string
	Template  string
	Scenes    []domain.Scene
	Reference []domain.ReferenceImage
}

type ClipRequest struct {
	JobID        string
	ClipIndex    int
	Prompt       string
	Seed         int64
	Temperature  float64
	Duration     float64
	VideoModel   string
	AspectRatio  string
	ReferenceURL string
}

// ClipAsset is one generated clip.
type ClipAsset struct {
	VideoURL     string
	ThumbnailURL string
	Duration     float64
	Cost         float64
	Seed         int64
}

type ComposeRequest struct {
	JobID       string
	SongURL     string
	AspectRatio string
	Clips       []domain.ClipVersion
}

type AudioAnalyzer interface {
	AnalyzeAudio(ctx context.Context, req AudioRequest) (*domain.AudioAnalysis, float64, error)
}

type ScenePlanner interface {
	PlanScenes(ctx context.Context, req SceneRequest) (*domain.ScenePlan, float64, error)
}

// ReferenceGenerator produces one reference image per call; the orchestrator
// fans calls out per scene so each image is independently retryable.
type ReferenceGenerator interface {
	GenerateReferenceImage(ctx context.Context, req ReferenceRequest) (*domain.ReferenceImage, float64, error)
}

type PromptGenerator interface {
	GeneratePrompts(ctx context.Context, req PromptRequest) (*domain.PromptSet, float64, error)
}

type ClipGenerator interface {
	GenerateClip(ctx context.Context, req ClipRequest) (*ClipAsset, error)
}

type Composer interface {
	ComposeVideo(ctx context.Context, req ComposeRequest) (*domain.Composition, error)
}
