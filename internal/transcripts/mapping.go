package transcripts

import (
	"encoding/json"
	"net/url"

	"github.com/parleyhq/parley/pkg/query"
	"github.com/parleyhq/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "transcripts", "t").
	Project("id", "ID").
	Project("contact_id", "ContactID").
	Project("message_id", "MessageID").
	Project("tenant_id", "TenantID").
	Project("status", "Status").
	Project("duration_seconds", "DurationSeconds").
	Project("audio_url", "AudioURL").
	Project("full_text", "FullText").
	Project("speakers", "Speakers").
	Project("sentiment", "Sentiment").
	Project("sentiment_score", "SentimentScore").
	Project("summary", "Summary").
	Project("action_items", "ActionItems").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "created_at",
	Descending: true,
}

const returningColumns = `id, contact_id, message_id, tenant_id, status,
		duration_seconds, audio_url, full_text, speakers, sentiment,
		sentiment_score, summary, action_items, created_at, updated_at`

// Filters contains optional filtering criteria for transcript queries.
type Filters struct {
	ContactID *string `json:"contact_id,omitempty"`
	Status    *Status `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ContactID", f.ContactID).
		WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("contactId"); c != "" {
		f.ContactID = &c
	}

	if s := values.Get("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}

	return f
}

func scanTranscript(s repository.Scanner) (Transcript, error) {
	var (
		t           Transcript
		speakers    []byte
		actionItems []byte
	)

	err := s.Scan(
		&t.ID,
		&t.ContactID,
		&t.MessageID,
		&t.TenantID,
		&t.Status,
		&t.DurationSeconds,
		&t.AudioURL,
		&t.FullText,
		&speakers,
		&t.Sentiment,
		&t.SentimentScore,
		&t.Summary,
		&actionItems,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if err := json.Unmarshal(speakers, &t.Speakers); err != nil {
		t.Speakers = []Turn{}
	}
	if err := json.Unmarshal(actionItems, &t.ActionItems); err != nil {
		t.ActionItems = []string{}
	}
	if t.Speakers == nil {
		t.Speakers = []Turn{}
	}
	if t.ActionItems == nil {
		t.ActionItems = []string{}
	}

	return t, nil
}

func marshalJSONB(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("[]")
	}
	return data
}
