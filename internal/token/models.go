package token

import "time"

// Token is a stored SCIM provisioning token. Only the SHA-256 digest of the
// plaintext is persisted.
type Token struct {
	ID             string     `json:"id"`
	TokenHash      string     `json:"-"`
	OrganizationID string     `json:"organization_id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at"`
}
