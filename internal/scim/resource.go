package scim

import (
	"strings"
	"time"

	"github.com/mkarlsen/scimgate/internal/directory"
)

// UserToResource converts a directory user into its SCIM wire shape. It is a
// pure function: active is computed by the caller from membership state, and
// baseURL is the externally visible server URL for meta.location.
func UserToResource(u *directory.User, active bool, baseURL string) UserResource {
	display := displayName(u.FirstName, u.LastName, u.Email)

	name := Name{
		GivenName:  deref(u.FirstName),
		FamilyName: deref(u.LastName),
	}
	// formatted is only meaningful when it adds information beyond the
	// email fallback.
	if display != u.Email {
		name.Formatted = display
	}

	res := UserResource{
		Schemas:     []string{SchemaUser},
		ID:          u.ID,
		UserName:    u.Email,
		Name:        name,
		DisplayName: display,
		Emails: []Email{
			{Value: u.Email, Type: "work", Primary: true},
		},
		Active: active,
		Meta: Meta{
			ResourceType: "User",
			Created:      u.CreatedAt.UTC().Format(time.RFC3339),
			LastModified: u.UpdatedAt.UTC().Format(time.RFC3339),
			Location:     strings.TrimRight(baseURL, "/") + "/scim/v2/Users/" + u.ID,
		},
	}
	if u.ScimExternalID != nil {
		res.ExternalID = *u.ScimExternalID
	}
	return res
}

// displayName joins the first and last name, falling back to email when both
// are empty.
func displayName(first, last *string, email string) string {
	joined := strings.TrimSpace(strings.TrimSpace(deref(first)) + " " + strings.TrimSpace(deref(last)))
	if joined == "" {
		return email
	}
	return joined
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
