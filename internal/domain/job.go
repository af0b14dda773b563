package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusProcessing   JobStatus = "processing"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusRegenerating JobStatus = "regenerating"
)

// ValidJobStatus reports whether s is one of the five enumerated statuses.
// Every external write path into the job table must go through this check.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusRegenerating:
		return true
	}
	return false
}

// Job encapsulates one music-video generation run: a song plus a text prompt
// driven through the six pipeline stages, then iteratively refined per clip.
type Job struct {
	ID                 string
	Status             JobStatus
	CurrentStage       *StageName
	Progress           int
	EstimatedRemaining *int // seconds
	TotalCost          float64
	Prompt             string
	SongURL            string
	VideoModel         string
	AspectRatio        string
	Template           string
	CharacterRef       string // optional user-supplied character reference image URL
	VideoURL           string
	Duration           float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
