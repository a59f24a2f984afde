package directory

import "time"

// RoleSelfService is the membership role assigned to provisioned users.
const RoleSelfService = "SELF_SERVICE"

// User is a globally unique account. Users are not org-scoped; "active"
// status within an organization is derived from membership, never stored on
// the user row.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      *string   `json:"first_name"`
	LastName       *string   `json:"last_name"`
	ScimExternalID *string   `json:"scim_external_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization is a tenant workspace.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to an organization. Row existence means the user
// is active in that organization.
type Membership struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
}

// TeamMember is the display-name record paired with an active membership.
type TeamMember struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateUserInput holds the fields for a new provisioned user. ID is supplied
// by the caller: provisioning assigns a placeholder identity that the
// identity provider's sign-in flow later links to a real credential.
type CreateUserInput struct {
	ID             string
	Email          string
	FirstName      *string
	LastName       *string
	ScimExternalID *string
}

// UpdateUserInput holds optional fields for a partial user update. Nil means
// leave the column untouched.
type UpdateUserInput struct {
	FirstName      *string
	LastName       *string
	ScimExternalID *string
}

// UserListParams controls 1-based offset pagination and optional attribute
// constraints for listing users within an organization.
type UserListParams struct {
	StartIndex int // 1-based; values below 1 are treated as 1
	Count      int
	Email      string // case-insensitive equality when non-empty
	ExternalID string // exact equality when non-empty
}
