package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Contact is a CRM contact normalized for dashboard listings.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	CompanyName  string `json:"company_name"`
	LastCallDate string `json:"last_call_date"`
}

type rawContact struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	PhoneNumber  string `json:"phoneNumber"`
	Email        string `json:"email"`
	CompanyName  string `json:"companyName"`
	BusinessName string `json:"businessName"`
	DateAdded    string `json:"dateAdded"`
	DateUpdated  string `json:"dateUpdated"`
}

// ListContacts returns the location's contacts.
func (c *Client) ListContacts(ctx context.Context, creds Credentials) ([]Contact, error) {
	u := fmt.Sprintf(
		"%s/contacts/?locationId=%s&limit=100",
		c.baseURL, url.QueryEscape(creds.LocationID),
	)

	body, err := c.get(ctx, u, creds)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	var payload struct {
		Contacts []rawContact `json:"contacts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}

	contacts := make([]Contact, 0, len(payload.Contacts))
	for _, rc := range payload.Contacts {
		contacts = append(contacts, normalizeContact(rc))
	}

	return contacts, nil
}

func normalizeContact(rc rawContact) Contact {
	name := strings.TrimSpace(rc.FirstName + " " + rc.LastName)
	if name == "" {
		name = rc.Email
	}
	if name == "" {
		name = "Unknown"
	}

	phone := rc.Phone
	if phone == "" {
		phone = rc.PhoneNumber
	}

	company := rc.CompanyName
	if company == "" {
		company = rc.BusinessName
	}

	lastCall := rc.DateUpdated
	if lastCall == "" {
		lastCall = rc.DateAdded
	}

	return Contact{
		ID:           rc.ID,
		Name:         name,
		Phone:        phone,
		Email:        rc.Email,
		CompanyName:  company,
		LastCallDate: lastCall,
	}
}
