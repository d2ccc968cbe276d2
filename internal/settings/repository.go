package settings

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/parleyhq/parley/pkg/query"
	"github.com/parleyhq/parley/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a settings repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "settings"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Find(ctx context.Context, tenantID string) (*ClientSettings, error) {
	q, args := query.NewBuilder(projection).BuildSingle("TenantID", tenantID)

	cs, err := repository.QueryOne(ctx, r.db, q, args, scanSettings)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &cs, nil
}

func (r *repo) FindByLocation(ctx context.Context, locationID string) (*ClientSettings, error) {
	q, args := query.NewBuilder(projection).BuildSingle("LocationID", locationID)

	cs, err := repository.QueryOne(ctx, r.db, q, args, scanSettings)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &cs, nil
}

func (r *repo) Save(ctx context.Context, tenantID string, cmd SaveCommand) (*ClientSettings, error) {
	if cmd.LocationID == "" || cmd.AccessToken == "" {
		return nil, ErrInvalid
	}

	q := `
		INSERT INTO client_settings(tenant_id, location_id, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			access_token = EXCLUDED.access_token,
			updated_at = now()
		RETURNING id, tenant_id, location_id, access_token, created_at, updated_at`

	args := []any{tenantID, cmd.LocationID, cmd.AccessToken}

	cs, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ClientSettings, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSettings)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("client settings saved", "tenant", tenantID, "location", cs.LocationID)
	return &cs, nil
}
