package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agroconsole/internal/adapters/httpapi"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token signed with AGROCONSOLE_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.AuthEnabled() {
				return fmt.Errorf("AGROCONSOLE_JWT_SECRET is not set")
			}
			auth, err := httpapi.NewAuthenticator(a.cfg.JWTSecret, a.cfg.JWTIssuer)
			if err != nil {
				return err
			}
			token, err := auth.Issue(subject, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "operator name")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
