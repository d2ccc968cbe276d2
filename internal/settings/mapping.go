package settings

import (
	"github.com/parleyhq/parley/pkg/query"
	"github.com/parleyhq/parley/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "client_settings", "cs").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("location_id", "LocationID").
	Project("access_token", "AccessToken").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

func scanSettings(s repository.Scanner) (ClientSettings, error) {
	var cs ClientSettings
	err := s.Scan(
		&cs.ID,
		&cs.TenantID,
		&cs.LocationID,
		&cs.AccessToken,
		&cs.CreatedAt,
		&cs.UpdatedAt,
	)
	return cs, err
}
