package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	httpecho "github.com/mohammadpnp/collaborator-import/internal/interfaces/http/echo"
	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(userID))
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}

			token, err := httpecho.IssueToken(root.cfg.Auth.JWTSecret, id.String(), ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Manager user UUID (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
