package transcripts

import (
	"context"

	"github.com/parleyhq/parley/pkg/pagination"
)

// System defines the public contract for transcript store operations.
// Tenant-scoped operations take the requesting tenant id; job-keyed
// operations are tenant-free because completion callbacks arrive
// without tenant context.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		tenantID string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Transcript], error)

	FindByMessage(ctx context.Context, tenantID, messageID string) (*Transcript, error)
	FindByJob(ctx context.Context, jobID string) (*Transcript, error)

	// SavePlaceholder upserts a processing record for the message,
	// resetting content fields. The first write's created_at is
	// preserved; a completed record is never regressed and yields
	// ErrAlreadyCompleted.
	SavePlaceholder(ctx context.Context, cmd PlaceholderCommand) (*Transcript, error)

	// SetJob records the provider job id (and audio url, when known)
	// on the in-flight placeholder.
	SetJob(ctx context.Context, messageID, jobID, audioURL string) (*Transcript, error)

	// Complete merges transcription content and analysis results and
	// sets the terminal completed status.
	Complete(ctx context.Context, jobID string, cmd CompleteCommand) (*Transcript, error)

	// MarkFailed transitions an in-flight record to failed with a
	// human-readable summary. Completed records are never regressed.
	MarkFailedByMessage(ctx context.Context, messageID, summary string) error
	MarkFailedByJob(ctx context.Context, jobID, summary string) error

	// ApplyAnalysis rewrites only the enrichment fields of a completed
	// transcript. Returns ErrNotReady unless the record is completed
	// with non-empty full text and speakers.
	ApplyAnalysis(ctx context.Context, tenantID, messageID string, update AnalysisUpdate) (*Transcript, error)

	Delete(ctx context.Context, tenantID, messageID string) error
}
