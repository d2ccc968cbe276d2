// Package settings implements tenant credential records. Each tenant
// stores the CRM access token and location id used on its behalf by the
// transcription pipeline. Records are resolved by tenant id on
// authenticated flows and by location id when routing inbound webhooks.
package settings

import (
	"time"

	"github.com/google/uuid"
)

// ClientSettings is a tenant's CRM connection record.
type ClientSettings struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	LocationID  string    `json:"location_id"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SaveCommand carries the data needed to create or replace a tenant's
// settings record.
type SaveCommand struct {
	LocationID  string `json:"location_id"`
	AccessToken string `json:"access_token"`
}
