package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/config"
	"github.com/mkarlsen/scimgate/internal/directory"
	"github.com/mkarlsen/scimgate/internal/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage SCIM provisioning tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <organization-id>",
	Short: "Issue a provisioning token for an organization",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenIssue,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke a provisioning token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

var tokenListCmd = &cobra.Command{
	Use:   "list <organization-id>",
	Short: "List an organization's provisioning tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenList,
}

func init() {
	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	tokenCmd.AddCommand(tokenListCmd)
	rootCmd.AddCommand(tokenCmd)
}

func openTokenStore(ctx context.Context) (*pgxpool.Pool, *token.Store, *directory.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, err
	}
	return pool, token.NewStore(pool), directory.NewStore(pool), nil
}

func runTokenIssue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pool, tokenStore, dirStore, err := openTokenStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	orgID := args[0]
	org, err := dirStore.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("looking up organization %s: %w", orgID, err)
	}

	hash, plaintext, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	tok, err := tokenStore.Create(ctx, org.ID, hash)
	if err != nil {
		return err
	}

	fmt.Printf("Token ID:       %s\n", tok.ID)
	fmt.Printf("Organization:   %s (%s)\n", org.Name, org.ID)
	fmt.Printf("Token:          %s\n", plaintext)
	fmt.Println("\nStore the token now; it is not shown again.")
	return nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pool, tokenStore, _, err := openTokenStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := tokenStore.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Revoked token %s\n", args[0])
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pool, tokenStore, _, err := openTokenStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens, err := tokenStore.ListByOrganization(ctx, args[0])
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}
	for _, tok := range tokens {
		lastUsed := "never"
		if tok.LastUsedAt != nil {
			lastUsed = tok.LastUsedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  created %s  last used %s\n",
			tok.ID, tok.CreatedAt.Format("2006-01-02 15:04:05"), lastUsed)
	}
	return nil
}
