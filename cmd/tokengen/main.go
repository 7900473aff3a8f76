// Command tokengen issues an operator access token for the /v1 API.
//
//	go run ./cmd/tokengen --user alice --tenant t_123 --role operator
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"call-assistant/internal/auth"
	"call-assistant/internal/config"
	"call-assistant/internal/rbac"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var user, tenant, role string

	cmd := &cobra.Command{
		Use:   "tokengen",
		Short: "Issue an operator access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.LoadAuth()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return fmt.Errorf("auth: %w", err)
			}
			tok, exp, err := m.IssueAccess(time.Now(), user, tenant, role)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintf(stderr, "expires_at=%s\n", exp.UTC().Format(time.RFC3339))
			fmt.Fprintln(stdout, tok)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&user, "user", "", "operator user id")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id the operator belongs to")
	cmd.Flags().StringVar(&role, "role", rbac.RoleOperator, "operator, analyst or super_admin")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		// stdout carries the token; errors go to stderr.
		slog.Error("tokengen failed", "err", err)
		os.Exit(1)
	}
}
