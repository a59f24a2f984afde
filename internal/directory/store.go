package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for users, organizations, memberships
// and team members.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new directory store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// userColumns is the full list of user columns used in SELECT statements.
const userColumns = `id, email, first_name, last_name, scim_external_id, created_at, updated_at`

const userColumnsPrefixed = `u.id, u.email, u.first_name, u.last_name, u.scim_external_id, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ScimExternalID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new user row. The email is stored lowercased; it is
// the identity key for provisioning.
func (s *Store) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	query := fmt.Sprintf(`INSERT INTO users (id, email, first_name, last_name, scim_external_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING %s`, userColumns)

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		in.ID, strings.ToLower(in.Email), in.FirstName, in.LastName, in.ScimExternalID))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by primary key. Returns pgx.ErrNoRows wrapped
// when no such user exists.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns)
	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns the page of users who are members of the organization,
// ordered by creation time ascending, plus the total count for the same
// constraints. StartIndex is 1-based.
func (s *Store) ListUsers(ctx context.Context, orgID string, params UserListParams) ([]*User, int, error) {
	where := []string{
		`EXISTS (SELECT 1 FROM user_organizations uo
		  WHERE uo.user_id = u.id AND uo.organization_id = $1)`,
	}
	args := []any{orgID}
	argIdx := 2

	if params.Email != "" {
		where = append(where, fmt.Sprintf("LOWER(u.email) = LOWER($%d)", argIdx))
		args = append(args, params.Email)
		argIdx++
	}
	if params.ExternalID != "" {
		where = append(where, fmt.Sprintf("u.scim_external_id = $%d", argIdx))
		args = append(args, params.ExternalID)
		argIdx++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users u WHERE %s`, whereClause)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	startIndex := params.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM users u WHERE %s
		 ORDER BY u.created_at ASC
		 OFFSET $%d LIMIT $%d`,
		userColumnsPrefixed, whereClause, argIdx, argIdx+1,
	)
	args = append(args, startIndex-1, params.Count)

	rows, err := s.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// UpdateUser performs a partial update on the user. Nil fields are left
// untouched.
func (s *Store) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.FirstName != nil {
		setClauses = append(setClauses, fmt.Sprintf("first_name = $%d", argIdx))
		args = append(args, *in.FirstName)
		argIdx++
	}
	if in.LastName != nil {
		setClauses = append(setClauses, fmt.Sprintf("last_name = $%d", argIdx))
		args = append(args, *in.LastName)
		argIdx++
	}
	if in.ScimExternalID != nil {
		setClauses = append(setClauses, fmt.Sprintf("scim_external_id = $%d", argIdx))
		args = append(args, *in.ScimExternalID)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetUserByID(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, userColumns,
	)

	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// ReplaceUserProfile overwrites all replaceable attributes at once. Nil
// values clear the column; this is the full-replace semantics of PUT.
func (s *Store) ReplaceUserProfile(ctx context.Context, id string, firstName, lastName, externalID *string) (*User, error) {
	query := fmt.Sprintf(
		`UPDATE users SET first_name = $1, last_name = $2, scim_external_id = $3, updated_at = now()
		 WHERE id = $4 RETURNING %s`, userColumns)

	u, err := scanUser(s.pool.QueryRow(ctx, query, firstName, lastName, externalID, id))
	if err != nil {
		return nil, fmt.Errorf("replacing user profile: %w", err)
	}
	return u, nil
}

// HasMembership reports whether the user is currently a member of the
// organization.
func (s *Store) HasMembership(ctx context.Context, userID, orgID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_organizations
		  WHERE user_id = $1 AND organization_id = $2)`,
		userID, orgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return exists, nil
}

// AttachMember creates the membership row and its paired team member in one
// transaction so a failure can't leave a member without a display record.
func (s *Store) AttachMember(ctx context.Context, userID, orgID, teamMemberName string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning attach transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO user_organizations (user_id, organization_id, roles)
		 VALUES ($1, $2, $3)`,
		userID, orgID, []string{RoleSelfService},
	)
	if err != nil {
		return fmt.Errorf("creating membership: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (id, name, organization_id, user_id)
		 VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), teamMemberName, orgID, userID,
	)
	if err != nil {
		return fmt.Errorf("creating team member: %w", err)
	}

	return tx.Commit(ctx)
}

// RevokeMembership removes the membership row and its paired team member in
// one transaction. It is a no-op if neither exists.
func (s *Store) RevokeMembership(ctx context.Context, userID, orgID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning revoke transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM team_members WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("deleting team member: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM user_organizations WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}

	return tx.Commit(ctx)
}

// SyncTeamMemberName updates the display name of the user's team member in
// the organization, if one exists.
func (s *Store) SyncTeamMemberName(ctx context.Context, userID, orgID, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE team_members SET name = $1 WHERE user_id = $2 AND organization_id = $3`,
		name, userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("syncing team member name: %w", err)
	}
	return nil
}

// CreateOrganization inserts a new organization.
func (s *Store) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO organizations (id, name) VALUES ($1, $2)
		 RETURNING id, name, created_at`,
		uuid.NewString(), name,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return org, nil
}

// GetOrganization retrieves an organization by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	org := &Organization{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM organizations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return org, nil
}

// ListOrganizations returns all organizations ordered by creation time.
func (s *Store) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM organizations ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
