package media

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

// Synthetic implements every pipeline provider with deterministic local
// results. It keeps the service fully runnable without provider credentials
// and gives tests cheap, well-formed stage payloads.
type Synthetic struct {
	// Latency is applied per call so cancellation paths stay honest.
	Latency time.Duration

	// ClipSeconds sets the planned clip length; defaults to 5s.
	ClipSeconds float64
}

func NewSynthetic() *Synthetic {
	return &Synthetic{Latency: 50 * time.Millisecond, ClipSeconds: 5}
}

func (s *Synthetic) wait(ctx context.Context) error {
	if s.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(s.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synthetic) clipSeconds() float64 {
	if s.ClipSeconds > 0 {
		return s.ClipSeconds
	}
	return 5
}

func (s *Synthetic) AnalyzeAudio(ctx context.Context, req AudioRequest) (*domain.AudioAnalysis, float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, 0, err
	}
	const duration = 30.0
	analysis := &domain.AudioAnalysis{
		BPM:      120,
		Duration: duration,
		Segments: []domain.SongSegment{
			{Label: "intro", Start: 0, End: 5},
			{Label: "verse", Start: 5, End: 15},
			{Label: "chorus", Start: 15, End: 25},
			{Label: "outro", Start: 25, End: duration},
		},
	}
	for t := 0.0; t < duration; t += 0.5 {
		analysis.Beats = append(analysis.Beats, t)
	}
	return analysis, 0.05, nil
}

func (s *Synthetic) PlanScenes(ctx context.Context, req SceneRequest) (*domain.ScenePlan, float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, 0, err
	}
	plan := &domain.ScenePlan{}
	clipLen := s.clipSeconds()
	for start, i := 0.0, 0; start < req.Analysis.Duration; start, i = start+clipLen, i+1 {
		end := start + clipLen
		if end > req.Analysis.Duration {
			end = req.Analysis.Duration
		}
		plan.Scenes = append(plan.Scenes, domain.Scene{
			Index:       i,
			Description: fmt.Sprintf("%s, scene %d", req.Prompt, i+1),
			Segment:     segmentAt(req.Analysis.Segments, start),
			Start:       start,
			End:         end,
		})
	}
	return plan, 0.02, nil
}

func segmentAt(segments []domain.SongSegment, t float64) string {
	for _, seg := range segments {
		if t >= seg.Start && t < seg.End {
			return seg.Label
		}
	}
	return ""
}

func (s *Synthetic) GenerateReferenceImage(ctx context.Context, req ReferenceRequest) (*domain.ReferenceImage, float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, 0, err
	}
	return &domain.ReferenceImage{
		Index: req.SceneIndex,
		URL:   fmt.Sprintf("https://cdn.example.com/jobs/%s/refs/%d.png", req.JobID, req.SceneIndex),
	}, 0.04, nil
}

func (s *Synthetic) GeneratePrompts(ctx context.Context, req PromptRequest) (*domain.PromptSet, float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, 0, err
	}
	set := &domain.PromptSet{}
	for _, scene := range req.Scenes {
		set.Prompts = append(set.Prompts, fmt.Sprintf("%s, cinematic, %s", scene.Description, req.Template))
	}
	return set, 0.02, nil
}

func (s *Synthetic) GenerateClip(ctx context.Context, req ClipRequest) (*ClipAsset, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	render := uuid.NewString()[:8]
	return &ClipAsset{
		VideoURL:     fmt.Sprintf("https://cdn.example.com/jobs/%s/clips/%d-%s.mp4", req.JobID, req.ClipIndex, render),
		ThumbnailURL: fmt.Sprintf("https://cdn.example.com/jobs/%s/clips/%d-%s.jpg", req.JobID, req.ClipIndex, render),
		Duration:     req.Duration,
		Cost:         0.40,
		Seed:         seed,
	}, nil
}

func (s *Synthetic) ComposeVideo(ctx context.Context, req ComposeRequest) (*domain.Composition, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	var total float64
	for _, clip := range req.Clips {
		total += clip.Duration
	}
	return &domain.Composition{
		VideoURL: fmt.Sprintf("https://cdn.example.com/jobs/%s/final-%s.mp4", req.JobID, uuid.NewString()[:8]),
		Duration: total,
		Cost:     0.10,
	}, nil
}

var (
	_ AudioAnalyzer      = (*Synthetic)(nil)
	_ ScenePlanner       = (*Synthetic)(nil)
	_ ReferenceGenerator = (*Synthetic)(nil)
	_ PromptGenerator    = (*Synthetic)(nil)
	_ ClipGenerator      = (*Synthetic)(nil)
	_ Composer           = (*Synthetic)(nil)
)
