package scim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mkarlsen/scimgate/internal/directory"
)

// Directory is the persistence interface the provisioning service operates
// against. It exists to allow testing without a real database.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*directory.User, error)
	GetUserByEmail(ctx context.Context, email string) (*directory.User, error)
	ListUsers(ctx context.Context, orgID string, params directory.UserListParams) ([]*directory.User, int, error)
	CreateUser(ctx context.Context, in directory.CreateUserInput) (*directory.User, error)
	UpdateUser(ctx context.Context, id string, in directory.UpdateUserInput) (*directory.User, error)
	ReplaceUserProfile(ctx context.Context, id string, firstName, lastName, externalID *string) (*directory.User, error)
	HasMembership(ctx context.Context, userID, orgID string) (bool, error)
	AttachMember(ctx context.Context, userID, orgID, teamMemberName string) error
	RevokeMembership(ctx context.Context, userID, orgID string) error
	SyncTeamMemberName(ctx context.Context, userID, orgID, name string) error
}

// Service orchestrates SCIM user provisioning against the directory model.
// All operations are scoped to the organization the caller's token was
// issued for.
type Service struct {
	store   Directory
	baseURL string
}

// NewService creates a provisioning service. baseURL is used for resource
// meta.location values.
func NewService(store Directory, baseURL string) *Service {
	return &Service{store: store, baseURL: baseURL}
}

const maxPageSize = 100

// List returns the organization's members as a SCIM list response. The page
// window is 1-based; count is clamped to 1..100. Only members of the scoping
// organization are visible here, so every returned resource is active.
func (s *Service) List(ctx context.Context, orgID string, params ListParams) (*ListResponse, error) {
	startIndex := params.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}
	count := params.Count
	if count < 1 {
		count = 1
	}
	if count > maxPageSize {
		count = maxPageSize
	}

	listParams := directory.UserListParams{
		StartIndex: startIndex,
		Count:      count,
	}
	if params.Filter != "" {
		if f := ParseFilter(params.Filter); f != nil {
			switch f.Attribute {
			case "username":
				listParams.Email = f.Value
			case "externalid":
				listParams.ExternalID = f.Value
			}
		}
	}

	users, total, err := s.store.ListUsers(ctx, orgID, listParams)
	if err != nil {
		return nil, err
	}

	resources := make([]UserResource, 0, len(users))
	for _, u := range users {
		resources = append(resources, UserToResource(u, true, s.baseURL))
	}

	return &ListResponse{
		Schemas:      []string{SchemaListResponse},
		TotalResults: total,
		StartIndex:   startIndex,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}, nil
}

// Get fetches a single user by global id. Users who exist but are not
// members of the scoping organization are returned with active:false.
func (s *Service) Get(ctx context.Context, orgID, userID string) (*UserResource, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound("User not found")
		}
		return nil, err
	}

	active, err := s.store.HasMembership(ctx, u.ID, orgID)
	if err != nil {
		return nil, err
	}

	res := UserToResource(u, active, s.baseURL)
	return &res, nil
}

// Create provisions a user into the organization. The email (from userName
// or the first email entry, lowercased) is the identity key: an existing
// user is attached to the organization, a new one gets a placeholder
// identity that sign-in via the identity provider later claims.
func (s *Service) Create(ctx context.Context, orgID string, input UserInput) (*UserResource, error) {
	email := strings.ToLower(input.UserName)
	if email == "" && len(input.Emails) > 0 {
		email = strings.ToLower(input.Emails[0].Value)
	}
	if email == "" {
		return nil, BadRequest("userName (email) is required")
	}

	firstName, lastName := nameFields(input.Name)
	externalID := optional(input.ExternalID)

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil && !isNoRows(err) {
		return nil, err
	}

	if existing != nil {
		isMember, err := s.store.HasMembership(ctx, existing.ID, orgID)
		if err != nil {
			return nil, err
		}
		if isMember {
			return nil, Conflict(fmt.Sprintf("User with userName %q already exists in this organization", email))
		}

		if err := s.store.AttachMember(ctx, existing.ID, orgID, displayName(firstName, lastName, email)); err != nil {
			return nil, err
		}
		if externalID != nil {
			if _, err := s.store.UpdateUser(ctx, existing.ID, directory.UpdateUserInput{ScimExternalID: externalID}); err != nil {
				return nil, err
			}
		}

		updated, err := s.store.GetUserByID(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		res := UserToResource(updated, true, s.baseURL)
		return &res, nil
	}

	// No user with this email: create one with a placeholder identity. No
	// authentication credential is created here; the identity provider's
	// sign-in flow links the real credential to this row later.
	created, err := s.store.CreateUser(ctx, directory.CreateUserInput{
		ID:             uuid.NewString(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		ScimExternalID: externalID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.AttachMember(ctx, created.ID, orgID, displayName(firstName, lastName, email)); err != nil {
		return nil, err
	}

	res := UserToResource(created, true, s.baseURL)
	return &res, nil
}

// Replace applies full attribute replacement: absent attributes are cleared,
// and the active flag (defaulting to true when omitted) drives the
// membership transition.
func (s *Service) Replace(ctx context.Context, orgID, userID string, input UserInput) (*UserResource, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound("User not found")
		}
		return nil, err
	}

	firstName, lastName := nameFields(input.Name)
	externalID := optional(input.ExternalID)

	if _, err := s.store.ReplaceUserProfile(ctx, userID, firstName, lastName, externalID); err != nil {
		return nil, err
	}

	teamMemberName := displayName(firstName, lastName, u.Email)
	if err := s.store.SyncTeamMemberName(ctx, userID, orgID, teamMemberName); err != nil {
		return nil, err
	}

	isActive, err := s.store.HasMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	shouldBeActive := input.Active == nil || *input.Active

	if isActive && !shouldBeActive {
		if err := s.store.RevokeMembership(ctx, userID, orgID); err != nil {
			return nil, err
		}
	} else if !isActive && shouldBeActive {
		if err := s.store.AttachMember(ctx, userID, orgID, teamMemberName); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := UserToResource(updated, shouldBeActive, s.baseURL)
	return &res, nil
}

// Patch applies "replace" operations, either flattened (path: "active",
// "name.givenName", "name.familyName", "externalId") or as a bulk object
// value with no path (a known identity-provider quirk). Add and remove
// operations are accepted but ignored. Field updates accumulate and are
// written once; the team-member name is re-synced only when a name field
// changed.
func (s *Service) Patch(ctx context.Context, orgID, userID string, patch PatchOp) (*UserResource, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, NotFound("User not found")
		}
		return nil, err
	}

	isActive, err := s.store.HasMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	var updates directory.UpdateUserInput

	for _, op := range patch.Operations {
		if op.Op != "replace" {
			continue
		}

		switch op.Path {
		case "active":
			isActive, err = s.transitionActive(ctx, u, orgID, isActive, activeValue(op.Value))
			if err != nil {
				return nil, err
			}
		case "name.givenName":
			updates.FirstName = ptr(stringValue(op.Value))
		case "name.familyName":
			updates.LastName = ptr(stringValue(op.Value))
		case "externalId":
			updates.ScimExternalID = ptr(stringValue(op.Value))
		case "":
			obj, ok := op.Value.(map[string]any)
			if !ok {
				continue
			}
			if v, present := obj["active"]; present {
				isActive, err = s.transitionActive(ctx, u, orgID, isActive, activeValue(v))
				if err != nil {
					return nil, err
				}
			}
			if nameObj, ok := obj["name"].(map[string]any); ok {
				if v, present := nameObj["givenName"]; present {
					updates.FirstName = ptr(stringValue(v))
				}
				if v, present := nameObj["familyName"]; present {
					updates.LastName = ptr(stringValue(v))
				}
			}
			if v, present := obj["externalId"]; present {
				updates.ScimExternalID = ptr(stringValue(v))
			}
		}
	}

	nameChanged := updates.FirstName != nil || updates.LastName != nil
	if nameChanged || updates.ScimExternalID != nil {
		updated, err := s.store.UpdateUser(ctx, userID, updates)
		if err != nil {
			return nil, err
		}
		if nameChanged {
			name := displayName(updated.FirstName, updated.LastName, updated.Email)
			if err := s.store.SyncTeamMemberName(ctx, userID, orgID, name); err != nil {
				return nil, err
			}
		}
	}

	updated, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := UserToResource(updated, isActive, s.baseURL)
	return &res, nil
}

// Deactivate removes the user's membership in the organization. It is
// idempotent: deactivating an already-inactive user succeeds as a no-op.
// The user row itself is never deleted.
func (s *Service) Deactivate(ctx context.Context, orgID, userID string) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if isNoRows(err) {
			return NotFound("User not found")
		}
		return err
	}

	isMember, err := s.store.HasMembership(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !isMember {
		return nil
	}

	return s.store.RevokeMembership(ctx, userID, orgID)
}

// transitionActive reconciles the desired active flag against the current
// membership state, reactivating with the best-available display name.
func (s *Service) transitionActive(ctx context.Context, u *directory.User, orgID string, isActive, wantActive bool) (bool, error) {
	if isActive && !wantActive {
		if err := s.store.RevokeMembership(ctx, u.ID, orgID); err != nil {
			return isActive, err
		}
		return false, nil
	}
	if !isActive && wantActive {
		name := displayName(u.FirstName, u.LastName, u.Email)
		if err := s.store.AttachMember(ctx, u.ID, orgID, name); err != nil {
			return isActive, err
		}
		return true, nil
	}
	return isActive, nil
}

// activeValue interprets the value of an "active" patch. Some identity
// providers send the string "True" instead of a boolean.
func activeValue(v any) bool {
	return v == true || v == "True"
}

// stringValue coerces a patch value to a string, mapping nil to "".
func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// nameFields extracts pointer-form name attributes from the input payload.
func nameFields(n *NameInput) (first, last *string) {
	if n == nil {
		return nil, nil
	}
	return n.GivenName, n.FamilyName
}

// optional maps an empty string to nil.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string {
	return &s
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
