package domain

import "time"

// EventType discriminates the progress/result events streamed to subscribers.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventStageUpdate EventType = "stage_update"
	EventCostUpdate  EventType = "cost_update"
	EventCompleted   EventType = "completed"
	EventError       EventType = "error"

	EventReferenceGenerationStart    EventType = "reference_generation_start"
	EventReferenceGenerationComplete EventType = "reference_generation_complete"
	EventReferenceGenerationFailed   EventType = "reference_generation_failed"
	EventReferenceGenerationRetry    EventType = "reference_generation_retry"

	EventVideoGenerationStart    EventType = "video_generation_start"
	EventVideoGenerationComplete EventType = "video_generation_complete"
	EventVideoGenerationFailed   EventType = "video_generation_failed"
	EventVideoGenerationRetry    EventType = "video_generation_retry"

	EventRegenerationStarted         EventType = "regeneration_started"
	EventRegenerationTemplateMatched EventType = "regeneration_template_matched"
	EventRegenerationPromptModified  EventType = "regeneration_prompt_modified"
	EventRegenerationVideoGenerating EventType = "regeneration_video_generating"
	EventRegenerationComplete        EventType = "regeneration_complete"
	EventRegenerationFailed          EventType = "regeneration_failed"

	EventRecompositionStarted  EventType = "recomposition_started"
	EventRecompositionComplete EventType = "recomposition_complete"
	EventRecompositionFailed   EventType = "recomposition_failed"
)

// Event is the envelope pushed to job subscribers. Data carries the
// type-specific fields; every event is self-contained enough for a subscriber
// to update its stage/version/cost projection without further reads.
type Event struct {
	Type  EventType      `json:"type"`
	JobID string         `json:"job_id"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(jobID string, typ EventType, data map[string]any) Event {
	return Event{Type: typ, JobID: jobID, At: time.Now().UTC(), Data: data}
}
