package models

import "time"

// User represents a user account in the system. Every user belongs to exactly
// one organization; the organization id in the JWT scopes all agenda
// operations.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	OrganizationID string    `json:"organizationId"`
	PasswordHash   string    `json:"-"` // Never expose this to the client
	CreatedAt      time.Time `json:"createdAt"`
}
