package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for SCIM provisioning tokens.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new token store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const tokenColumns = `id, token_hash, organization_id, created_at, last_used_at`

// Create inserts a new token row for the organization. The caller supplies
// the hash; the plaintext never reaches the store.
func (s *Store) Create(ctx context.Context, orgID, hash string) (*Token, error) {
	t := &Token{}
	query := fmt.Sprintf(`INSERT INTO scim_tokens (id, token_hash, organization_id)
		 VALUES ($1, $2, $3) RETURNING %s`, tokenColumns)
	err := s.pool.QueryRow(ctx, query, uuid.NewString(), hash, orgID).
		Scan(&t.ID, &t.TokenHash, &t.OrganizationID, &t.CreatedAt, &t.LastUsedAt)
	if err != nil {
		return nil, fmt.Errorf("creating token: %w", err)
	}
	return t, nil
}

// OrgToken is a token joined with its organization's name, as needed for
// authentication.
type OrgToken struct {
	Token
	OrganizationName string
}

// GetByHash retrieves a token by its hash along with the organization it
// scopes to.
func (s *Store) GetByHash(ctx context.Context, hash string) (*OrgToken, error) {
	t := &OrgToken{}
	err := s.pool.QueryRow(ctx,
		`SELECT t.id, t.token_hash, t.organization_id, t.created_at, t.last_used_at, o.name
		 FROM scim_tokens t JOIN organizations o ON t.organization_id = o.id
		 WHERE t.token_hash = $1`, hash,
	).Scan(&t.ID, &t.TokenHash, &t.OrganizationID, &t.CreatedAt, &t.LastUsedAt, &t.OrganizationName)
	if err != nil {
		return nil, fmt.Errorf("getting token by hash: %w", err)
	}
	return t, nil
}

// ListByOrganization returns the organization's tokens, newest first.
func (s *Store) ListByOrganization(ctx context.Context, orgID string) ([]*Token, error) {
	query := fmt.Sprintf(`SELECT %s FROM scim_tokens
		 WHERE organization_id = $1 ORDER BY created_at DESC`, tokenColumns)
	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t := &Token{}
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.OrganizationID, &t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Delete revokes a token by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM scim_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// TouchBatch stamps last_used_at for a batch of token ids.
func (s *Store) TouchBatch(ctx context.Context, ids []string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scim_tokens SET last_used_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("touching tokens: %w", err)
	}
	return nil
}
