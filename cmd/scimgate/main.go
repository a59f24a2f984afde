package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scimgate",
	Short: "scimgate — SCIM 2.0 user provisioning server",
	Long:  "scimgate implements the SCIM 2.0 /Users protocol for multi-tenant user provisioning: identity providers push user lifecycle changes (create, update, deactivate) that are reconciled against per-organization memberships in Postgres.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/scimgate.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
