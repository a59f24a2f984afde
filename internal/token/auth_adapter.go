package token

import (
	"context"

	"github.com/mkarlsen/scimgate/internal/auth"
)

// AuthAdapter wraps a token Store to satisfy auth.TokenLookup.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates an adapter that bridges token.Store to
// auth.TokenLookup.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// GetByHash looks up a token by digest and converts to auth.Token.
func (a *AuthAdapter) GetByHash(ctx context.Context, hash string) (*auth.Token, error) {
	t, err := a.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &auth.Token{
		ID: t.ID,
		Organization: auth.Organization{
			ID:   t.OrganizationID,
			Name: t.OrganizationName,
		},
	}, nil
}
