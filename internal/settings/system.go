package settings

import "context"

// System defines the public contract for settings operations.
type System interface {
	Handler() *Handler

	// Find returns the settings record for a tenant.
	Find(ctx context.Context, tenantID string) (*ClientSettings, error)
	// FindByLocation returns the settings record connected to a CRM
	// location. Used to resolve the tenant for inbound webhooks.
	FindByLocation(ctx context.Context, locationID string) (*ClientSettings, error)
	// Save creates or replaces the tenant's settings record.
	Save(ctx context.Context, tenantID string, cmd SaveCommand) (*ClientSettings, error)
}
