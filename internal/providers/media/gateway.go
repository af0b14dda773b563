package media

import (
	"context"
	"time"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
)

// Timeouts bounds each provider call so no worker blocks indefinitely.
type Timeouts struct {
	Audio   time.Duration
	Scene   time.Duration
	Image   time.Duration
	Prompt  time.Duration
	Clip    time.Duration
	Compose time.Duration
}

// TimeoutsFromConfig lifts the configured per-call bounds.
func TimeoutsFromConfig(cfg *infra.Config) Timeouts {
	return Timeouts{
		Audio:   cfg.AudioTimeout,
		Scene:   cfg.SceneTimeout,
		Image:   cfg.ImageTimeout,
		Prompt:  cfg.PromptTimeout,
		Clip:    cfg.ClipTimeout,
		Compose: cfg.ComposeTimeout,
	}
}

// Gateway is the typed front door to the six pipeline providers. Every call
// gets a deadline and a transient/fatal classification; transient failures
// are retried a bounded number of times before surfacing. GenerateClip is the
// exception: its retries belong to the orchestrator, which emits a
// video_generation_retry event per attempt.
type Gateway struct {
	audio    AudioAnalyzer
	scenes   ScenePlanner
	images   ReferenceGenerator
	prompts  PromptGenerator
	clips    ClipGenerator
	composer Composer
	timeouts Timeouts
}

// NewGateway assembles the gateway from provider implementations.
func NewGateway(audio AudioAnalyzer, scenes ScenePlanner, images ReferenceGenerator, prompts PromptGenerator, clips ClipGenerator, composer Composer, timeouts Timeouts) *Gateway {
	return &Gateway{
		audio:    audio,
		scenes:   scenes,
		images:   images,
		prompts:  prompts,
		clips:    clips,
		composer: composer,
		timeouts: timeouts,
	}
}

func (g *Gateway) AnalyzeAudio(ctx context.Context, req AudioRequest) (*domain.AudioAnalysis, float64, error) {
	var out *domain.AudioAnalysis
	var cost float64
	err := Retry(ctx, defaultRetryAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Audio)
		defer cancel()
		var err error
		out, cost, err = g.audio.AnalyzeAudio(callCtx, req)
		return err
	}, nil)
	return out, cost, err
}

func (g *Gateway) PlanScenes(ctx context.Context, req SceneRequest) (*domain.ScenePlan, float64, error) {
	var out *domain.ScenePlan
	var cost float64
	err := Retry(ctx, defaultRetryAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Scene)
		defer cancel()
		var err error
		out, cost, err = g.scenes.PlanScenes(callCtx, req)
		return err
	}, nil)
	return out, cost, err
}

// GenerateReferenceImage runs one image call with a deadline. Retrying is
// left to the caller so each image's retry events carry its scene index.
func (g *Gateway) GenerateReferenceImage(ctx context.Context, req ReferenceRequest) (*domain.ReferenceImage, float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Image)
	defer cancel()
	img, cost, err := g.images.GenerateReferenceImage(callCtx, req)
	return img, cost, Classify(err)
}

func (g *Gateway) GeneratePrompts(ctx context.Context, req PromptRequest) (*domain.PromptSet, float64, error) {
	var out *domain.PromptSet
	var cost float64
	err := Retry(ctx, defaultRetryAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Prompt)
		defer cancel()
		var err error
		out, cost, err = g.prompts.GeneratePrompts(callCtx, req)
		return err
	}, nil)
	return out, cost, err
}

// GenerateClip runs one clip call with a deadline and classifies the error.
func (g *Gateway) GenerateClip(ctx context.Context, req ClipRequest) (*ClipAsset, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Clip)
	defer cancel()
	asset, err := g.clips.GenerateClip(callCtx, req)
	return asset, Classify(err)
}

func (g *Gateway) ComposeVideo(ctx context.Context, req ComposeRequest) (*domain.Composition, error) {
	var out *domain.Composition
	err := Retry(ctx, defaultRetryAttempts, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Compose)
		defer cancel()
		var err error
		out, err = g.composer.ComposeVideo(callCtx, req)
		return err
	}, nil)
	return out, err
}
