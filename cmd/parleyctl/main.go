// File: cmd/parleyctl/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iyunix/go-parley/internal/auth"
	"github.com/iyunix/go-parley/internal/config"
	"github.com/iyunix/go-parley/internal/repository"
	"github.com/iyunix/go-parley/internal/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parleyctl",
	Short: "Operator tools for the parley chat server",
}

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tok, err := auth.GenerateJWT(args[0], []byte(cfg.JWTSecretKey), cfg.JWTIssuer, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := store.Open(store.Config{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, MaxOpenConns: cfg.DBMaxOpenConns})
		if err != nil {
			return err
		}
		defer store.Close(db)

		if err := repository.AutoMigrate(db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
