package speech

import "github.com/parleyhq/parley/internal/transcripts"

// Provider job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Job is the provider's transcript payload.
type Job struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Text          string      `json:"text"`
	Utterances    []Utterance `json:"utterances"`
	AudioDuration int         `json:"audio_duration"`
	Error         string      `json:"error"`
}

// Utterance is a provider diarization turn with millisecond timestamps.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Result is a provider transcript normalized into the transcript
// schema. A non-empty ErrorMessage reports a provider-side job failure
// instead of an error return.
type Result struct {
	FullText        string
	Speakers        []transcripts.Turn
	DurationSeconds int
	ErrorMessage    string
}

// Normalize converts a provider job into the transcript schema.
// Provider label "A" maps to speaker A and every other label maps to B.
// The tie-break is provider-assigned labeling; it can misattribute
// roles when the contact speaks first. Millisecond timestamps carry
// over verbatim.
func Normalize(job *Job) Result {
	if job.Status == StatusError {
		return Result{ErrorMessage: job.Error}
	}

	turns := make([]transcripts.Turn, 0, len(job.Utterances))
	for _, u := range job.Utterances {
		speaker := "B"
		if u.Speaker == "A" {
			speaker = "A"
		}
		turns = append(turns, transcripts.Turn{
			Speaker: speaker,
			Text:    u.Text,
			StartMS: u.Start,
			EndMS:   u.End,
		})
	}

	return Result{
		FullText:        job.Text,
		Speakers:        turns,
		DurationSeconds: job.AudioDuration,
	}
}
