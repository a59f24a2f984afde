package scim

import (
	"testing"
	"time"

	"github.com/mkarlsen/scimgate/internal/directory"
)

func testUser() *directory.User {
	first := "Jane"
	last := "Doe"
	ext := "ext-42"
	return &directory.User{
		ID:             "u-1",
		Email:          "jane@acme.com",
		FirstName:      &first,
		LastName:       &last,
		ScimExternalID: &ext,
		CreatedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC),
	}
}

func TestUserToResource(t *testing.T) {
	res := UserToResource(testUser(), true, "https://app.example.com")

	if len(res.Schemas) != 1 || res.Schemas[0] != SchemaUser {
		t.Errorf("unexpected schemas: %v", res.Schemas)
	}
	if res.ID != "u-1" {
		t.Errorf("expected id u-1, got %q", res.ID)
	}
	if res.UserName != "jane@acme.com" {
		t.Errorf("expected userName jane@acme.com, got %q", res.UserName)
	}
	if res.ExternalID != "ext-42" {
		t.Errorf("expected externalId ext-42, got %q", res.ExternalID)
	}
	if !res.Active {
		t.Error("expected active=true")
	}
	if res.DisplayName != "Jane Doe" {
		t.Errorf("expected displayName 'Jane Doe', got %q", res.DisplayName)
	}
	if res.Name.GivenName != "Jane" || res.Name.FamilyName != "Doe" || res.Name.Formatted != "Jane Doe" {
		t.Errorf("unexpected name: %+v", res.Name)
	}
	if len(res.Emails) != 1 || res.Emails[0].Value != "jane@acme.com" || !res.Emails[0].Primary {
		t.Errorf("unexpected emails: %+v", res.Emails)
	}
	if res.Meta.ResourceType != "User" {
		t.Errorf("expected resourceType User, got %q", res.Meta.ResourceType)
	}
	if res.Meta.Created != "2024-03-01T10:00:00Z" {
		t.Errorf("unexpected created: %q", res.Meta.Created)
	}
	if res.Meta.LastModified != "2024-03-02T11:30:00Z" {
		t.Errorf("unexpected lastModified: %q", res.Meta.LastModified)
	}
	if res.Meta.Location != "https://app.example.com/scim/v2/Users/u-1" {
		t.Errorf("unexpected location: %q", res.Meta.Location)
	}
}

func TestUserToResource_NoName(t *testing.T) {
	u := testUser()
	u.FirstName = nil
	u.LastName = nil

	res := UserToResource(u, false, "https://app.example.com")

	if res.DisplayName != "jane@acme.com" {
		t.Errorf("expected email fallback displayName, got %q", res.DisplayName)
	}
	if res.Name.Formatted != "" {
		t.Errorf("formatted should be omitted for email fallback, got %q", res.Name.Formatted)
	}
	if res.Active {
		t.Error("expected active=false")
	}
}

func TestUserToResource_NoExternalID(t *testing.T) {
	u := testUser()
	u.ScimExternalID = nil

	res := UserToResource(u, true, "https://app.example.com")
	if res.ExternalID != "" {
		t.Errorf("expected empty externalId, got %q", res.ExternalID)
	}
}

func TestUserToResource_BaseURLTrailingSlash(t *testing.T) {
	res := UserToResource(testUser(), true, "https://app.example.com/")
	if res.Meta.Location != "https://app.example.com/scim/v2/Users/u-1" {
		t.Errorf("trailing slash not trimmed: %q", res.Meta.Location)
	}
}

func TestDisplayName(t *testing.T) {
	first := "Jane"
	last := "Doe"
	spaced := "  "

	tests := []struct {
		name  string
		first *string
		last  *string
		want  string
	}{
		{"both set", &first, &last, "Jane Doe"},
		{"first only", &first, nil, "Jane"},
		{"last only", nil, &last, "Doe"},
		{"both nil", nil, nil, "jane@acme.com"},
		{"whitespace only", &spaced, &spaced, "jane@acme.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.first, tt.last, "jane@acme.com"); got != tt.want {
				t.Errorf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}
