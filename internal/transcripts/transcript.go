// Package transcripts implements the persisted transcript state machine.
// A transcript is created as a placeholder when a call finishes, mutated
// in place as pipeline stages complete, and reaches a terminal state of
// completed or failed. One record exists per CRM message id.
package transcripts

import "time"

// Status is the transcript processing state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Sentiment is the derived call sentiment classification.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// Turn is a single diarized speaker turn. Speaker A is the outbound
// agent party, B the contact. Ordering is chronological by StartMS as
// produced by the provider.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
}

// Transcript is the central call record. ID equals the speech provider's
// job id once submission succeeds; MessageID is the natural unique key.
type Transcript struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contact_id"`
	MessageID       string    `json:"message_id"`
	TenantID        string    `json:"tenant_id"`
	Status          Status    `json:"status"`
	DurationSeconds int       `json:"duration_seconds"`
	AudioURL        string    `json:"audio_url"`
	FullText        string    `json:"full_text"`
	Speakers        []Turn    `json:"speakers"`
	Sentiment       Sentiment `json:"sentiment"`
	SentimentScore  int       `json:"sentiment_score"`
	Summary         string    `json:"summary"`
	ActionItems     []string  `json:"action_items"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PlaceholderCommand reserves a message id with an in-flight record.
type PlaceholderCommand struct {
	MessageID string
	ContactID string
	TenantID  string
	AudioURL  string
}

// CompleteCommand carries the full content merge applied when a
// transcription job finishes and analysis has run.
type CompleteCommand struct {
	FullText        string
	Speakers        []Turn
	DurationSeconds int
	Summary         string
	Sentiment       Sentiment
	SentimentScore  int
	ActionItems     []string
}

// AnalysisUpdate rewrites only the enrichment fields of a completed
// transcript. Status and raw content are untouched.
type AnalysisUpdate struct {
	Summary        string
	Sentiment      Sentiment
	SentimentScore int
	ActionItems    []string
}
