package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwt_token "casework/internal/jwt_token"
	"casework/internal/platform/config"
)

type tokenFlags struct {
	caseworker string
	office     string
	ttl        time.Duration
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage caseworker bearer tokens",
	}
	fl := &tokenFlags{}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a caseworker token signed with JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokenIssue(cmd, fl)
		},
	}
	f := issue.Flags()
	f.StringVar(&fl.caseworker, "caseworker", "", "caseworker ID (required)")
	f.StringVar(&fl.office, "office", "", "caseworker office")
	f.DurationVar(&fl.ttl, "ttl", 0, "token lifetime (defaults to JWT_TOKEN_TTL)")
	_ = issue.MarkFlagRequired("caseworker")
	cmd.AddCommand(issue)
	return cmd
}

func runTokenIssue(cmd *cobra.Command, fl *tokenFlags) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.UsesDevSigningKey() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: signing with the development key")
	}
	ttl := fl.ttl
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	svc := jwt_token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	token, err := svc.GenerateAccessToken(fl.caseworker, fl.office, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
