package main

import (
	"errors"
	"fmt"
	"time"

	"bilancio/internal/middleware/auth"

	"github.com/spf13/cobra"
)

var flagTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for the owner",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	owner, err := requireOwner()
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set, the server accepts X-Owner-ID instead of tokens")
	}
	if flagTTL <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer).IssueToken(owner, flagTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
