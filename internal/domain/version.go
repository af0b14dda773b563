package domain

import "time"

// ClipVersion is one immutable generated output for one clip. Version 1 is
// the original from the pipeline run; every regeneration appends max+1.
// Exactly one version per (job, clip) carries IsCurrent at any time.
type ClipVersion struct {
	JobID           string
	ClipIndex       int
	VersionNumber   int
	VideoURL        string
	ThumbnailURL    string
	Prompt          string
	UserInstruction string // empty for version 1
	Seed            int64
	Cost            float64
	Duration        float64
	IsCurrent       bool
	CreatedAt       time.Time
}
