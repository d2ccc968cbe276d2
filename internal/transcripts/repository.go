package transcripts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parleyhq/parley/pkg/pagination"
	"github.com/parleyhq/parley/pkg/query"
	"github.com/parleyhq/parley/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a transcript repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "transcripts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	tenantID string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Transcript], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", &tenantID).
		WhereSearch(page.Search, "FullText", "Summary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transcripts: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTranscript)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) FindByMessage(ctx context.Context, tenantID, messageID string) (*Transcript, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("TenantID", &tenantID).
		WhereEquals("MessageID", &messageID).
		BuildSingleOrNull()

	t, err := repository.QueryOne(ctx, r.db, q, args, scanTranscript)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) FindByJob(ctx context.Context, jobID string) (*Transcript, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", jobID)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanTranscript)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) SavePlaceholder(ctx context.Context, cmd PlaceholderCommand) (*Transcript, error) {
	q := `
		INSERT INTO transcripts(
			id, contact_id, message_id, tenant_id, status,
			duration_seconds, audio_url, full_text, speakers,
			sentiment, sentiment_score, summary, action_items)
		VALUES ($1, $2, $3, $4, 'processing', 0, $5, '', '[]', '', 0, '', '[]')
		ON CONFLICT (message_id) DO UPDATE SET
			id = EXCLUDED.id,
			contact_id = EXCLUDED.contact_id,
			tenant_id = EXCLUDED.tenant_id,
			status = 'processing',
			duration_seconds = 0,
			audio_url = EXCLUDED.audio_url,
			full_text = '',
			speakers = '[]',
			sentiment = '',
			sentiment_score = 0,
			summary = '',
			action_items = '[]',
			updated_at = now()
		WHERE transcripts.status <> 'completed'
		RETURNING ` + returningColumns

	args := []any{cmd.MessageID, cmd.ContactID, cmd.MessageID, cmd.TenantID, cmd.AudioURL}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transcript, error) {
		return repository.QueryOne(ctx, tx, q, args, scanTranscript)
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyCompleted
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("placeholder saved", "message", t.MessageID, "tenant", t.TenantID)
	return &t, nil
}

func (r *repo) SetJob(ctx context.Context, messageID, jobID, audioURL string) (*Transcript, error) {
	q := `
		UPDATE transcripts SET
			id = $1,
			audio_url = COALESCE(NULLIF($2, ''), audio_url),
			updated_at = now()
		WHERE message_id = $3 AND status = 'processing'
		RETURNING ` + returningColumns

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transcript, error) {
		return repository.QueryOne(ctx, tx, q, []any{jobID, audioURL, messageID}, scanTranscript)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("job recorded", "message", messageID, "job", jobID)
	return &t, nil
}

func (r *repo) Complete(ctx context.Context, jobID string, cmd CompleteCommand) (*Transcript, error) {
	q := `
		UPDATE transcripts SET
			status = 'completed',
			full_text = $1,
			speakers = $2,
			duration_seconds = $3,
			summary = $4,
			sentiment = $5,
			sentiment_score = $6,
			action_items = $7,
			updated_at = now()
		WHERE id = $8
		RETURNING ` + returningColumns

	args := []any{
		cmd.FullText,
		marshalJSONB(cmd.Speakers),
		cmd.DurationSeconds,
		cmd.Summary,
		string(cmd.Sentiment),
		cmd.SentimentScore,
		marshalJSONB(cmd.ActionItems),
		jobID,
	}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transcript, error) {
		return repository.QueryOne(ctx, tx, q, args, scanTranscript)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("transcript completed", "message", t.MessageID, "job", jobID)
	return &t, nil
}

func (r *repo) MarkFailedByMessage(ctx context.Context, messageID, summary string) error {
	return r.markFailed(ctx, "message_id", messageID, summary)
}

func (r *repo) MarkFailedByJob(ctx context.Context, jobID, summary string) error {
	return r.markFailed(ctx, "id", jobID, summary)
}

func (r *repo) markFailed(ctx context.Context, column, key, summary string) error {
	q := fmt.Sprintf(`
		UPDATE transcripts SET
			status = 'failed',
			summary = $1,
			updated_at = now()
		WHERE %s = $2 AND status <> 'completed'`, column)

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(ctx, tx, q, summary, key); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Warn("transcript failed", "key", key, "summary", summary)
	return nil
}

func (r *repo) ApplyAnalysis(ctx context.Context, tenantID, messageID string, update AnalysisUpdate) (*Transcript, error) {
	current, err := r.FindByMessage(ctx, tenantID, messageID)
	if err != nil {
		return nil, err
	}

	if current.Status != StatusCompleted || current.FullText == "" || len(current.Speakers) == 0 {
		return nil, ErrNotReady
	}

	q := `
		UPDATE transcripts SET
			summary = $1,
			sentiment = $2,
			sentiment_score = $3,
			action_items = $4,
			updated_at = now()
		WHERE message_id = $5 AND tenant_id = $6
		RETURNING ` + returningColumns

	args := []any{
		update.Summary,
		string(update.Sentiment),
		update.SentimentScore,
		marshalJSONB(update.ActionItems),
		messageID,
		tenantID,
	}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transcript, error) {
		return repository.QueryOne(ctx, tx, q, args, scanTranscript)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("analysis rewritten", "message", messageID)
	return &t, nil
}

func (r *repo) Delete(ctx context.Context, tenantID, messageID string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM transcripts WHERE message_id = $1 AND tenant_id = $2",
			messageID, tenantID,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("transcript deleted", "message", messageID)
	return nil
}
