package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/config"
	"github.com/mkarlsen/scimgate/internal/directory"
	"github.com/mkarlsen/scimgate/internal/scim"
	"github.com/mkarlsen/scimgate/internal/token"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo organization, provisioning token, and users",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var demoUsers = []scim.UserInput{
	{
		UserName:   "grace.hopper@demo.test",
		ExternalID: "demo-001",
		Name:       &scim.NameInput{GivenName: strPtr("Grace"), FamilyName: strPtr("Hopper")},
	},
	{
		UserName:   "alan.turing@demo.test",
		ExternalID: "demo-002",
		Name:       &scim.NameInput{GivenName: strPtr("Alan"), FamilyName: strPtr("Turing")},
	},
	{
		UserName:   "ada.lovelace@demo.test",
		ExternalID: "demo-003",
		Name:       &scim.NameInput{GivenName: strPtr("Ada"), FamilyName: strPtr("Lovelace")},
	},
}

func strPtr(s string) *string { return &s }

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	dirStore := directory.NewStore(pool)
	tokenStore := token.NewStore(pool)

	// Check if seed has already run.
	existing, err := dirStore.ListOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("checking existing organizations: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	org, err := dirStore.CreateOrganization(ctx, "Demo Org")
	if err != nil {
		return fmt.Errorf("creating demo organization: %w", err)
	}
	slog.Info("created organization", "id", org.ID, "name", org.Name)

	hash, plaintext, err := auth.GenerateToken()
	if err != nil {
		return fmt.Errorf("generating provisioning token: %w", err)
	}
	tok, err := tokenStore.Create(ctx, org.ID, hash)
	if err != nil {
		return fmt.Errorf("creating provisioning token: %w", err)
	}
	slog.Info("created provisioning token", "id", tok.ID)

	svc := scim.NewService(dirStore, cfg.SCIM.BaseURL)
	for _, input := range demoUsers {
		u, err := svc.Create(ctx, org.ID, input)
		if err != nil {
			return fmt.Errorf("provisioning user %q: %w", input.UserName, err)
		}
		slog.Info("provisioned user", "id", u.ID, "email", u.UserName)
	}

	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Organization:  %s (%s)\n", org.Name, org.ID)
	fmt.Printf("Users:         %d provisioned\n", len(demoUsers))
	fmt.Printf("SCIM Token:    %s\n", plaintext)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' %s/scim/v2/Users\n", plaintext, cfg.SCIM.BaseURL)

	return nil
}
