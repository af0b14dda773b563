package domain

import (
	"encoding/json"
	"time"
)

// StageName identifies one of the six fixed pipeline stages.
type StageName string

const (
	StageAudioParser        StageName = "audio_parser"
	StageScenePlanner       StageName = "scene_planner"
	StageReferenceGenerator StageName = "reference_generator"
	StagePromptGenerator    StageName = "prompt_generator"
	StageVideoGenerator     StageName = "video_generator"
	StageComposer           StageName = "composer"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = []StageName{
	StageAudioParser,
	StageScenePlanner,
	StageReferenceGenerator,
	StagePromptGenerator,
	StageVideoGenerator,
	StageComposer,
}

// stageAliases maps legacy stage names still present in old rows and old
// client payloads onto the canonical enum. Aliasing is resolved here, at the
// store boundary, and nowhere else.
var stageAliases = map[string]StageName{
	"audio_analysis":   StageAudioParser,
	"beat_detection":   StageAudioParser,
	"scene_planning":   StageScenePlanner,
	"reference_images": StageReferenceGenerator,
	"prompt_gen":       StagePromptGenerator,
	"video_gen":        StageVideoGenerator,
	"composition":      StageComposer,
}

// CanonicalStage resolves raw into the canonical stage name. ok is false when
// raw is neither canonical nor a known legacy alias.
func CanonicalStage(raw string) (StageName, bool) {
	for _, s := range StageOrder {
		if string(s) == raw {
			return s, true
		}
	}
	if s, ok := stageAliases[raw]; ok {
		return s, true
	}
	return "", false
}

// StageIndex returns the position of name in StageOrder, or -1.
func StageIndex(name StageName) int {
	for i, s := range StageOrder {
		if s == name {
			return i
		}
	}
	return -1
}

// StageStatus enumerates per-stage lifecycle states.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// Terminal reports whether the status can never change again. The store
// rejects any write that would downgrade a terminal status.
func (s StageStatus) Terminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed
}

// StageRecord is the durable per-(job, stage) progress row. Metadata is the
// opaque stage result payload; it must carry enough to rebuild every event
// the stage emitted, so a late subscriber can catch up from the store alone.
type StageRecord struct {
	JobID     string
	Stage     StageName
	Status    StageStatus
	Metadata  json.RawMessage
	Error     string
	Cost      float64
	StartedAt time.Time
	UpdatedAt time.Time
}

// Stage metadata payloads. Each stage persists exactly one of these as its
// StageRecord.Metadata.

// AudioAnalysis is the audio_parser result: tempo, beat grid and the song's
// structural segments (used later for "the chorus clips" style targeting).
type AudioAnalysis struct {
	BPM      float64       `json:"bpm"`
	Duration float64       `json:"duration"`
	Beats    []float64     `json:"beats"`
	Segments []SongSegment `json:"segments"`
}

type SongSegment struct {
	Label string  `json:"label"` // intro, verse, chorus, bridge, outro
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// ScenePlan is the scene_planner result: one scene per clip.
type ScenePlan struct {
	Scenes []Scene `json:"scenes"`
}

type Scene struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Segment     string  `json:"segment"` // song segment label the scene covers
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
}

// ReferenceSet is the reference_generator result.
type ReferenceSet struct {
	Images []ReferenceImage `json:"images"`
}

type ReferenceImage struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// PromptSet is the prompt_generator result: one video prompt per clip.
type PromptSet struct {
	Prompts []string `json:"prompts"`
}

// ClipSet is the video_generator result. Failed clips keep their slot with
// Failed=true so the composer and the UI can see the gap.
type ClipSet struct {
	Clips      []ClipResult `json:"clips"`
	Successful int          `json:"successful"`
	Total      int          `json:"total"`
}

type ClipResult struct {
	Index        int     `json:"index"`
	VideoURL     string  `json:"video_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Prompt       string  `json:"prompt"`
	Seed         int64   `json:"seed"`
	Duration     float64 `json:"duration"`
	Cost         float64 `json:"cost"`
	Retries      int     `json:"retries"`
	Failed       bool    `json:"failed,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Composition is the composer result.
type Composition struct {
	VideoURL string  `json:"video_url"`
	Duration float64 `json:"duration"`
	Cost     float64 `json:"cost"`
}
