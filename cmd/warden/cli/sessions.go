package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/faucetdb/warden/internal/service"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage admin sessions",
	}

	cmd.AddCommand(newSessionsPurgeCmd())
	cmd.AddCommand(newSessionsRevokeAllCmd())

	return cmd
}

// ---------- sessions purge ----------

func newSessionsPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions now",
		Long:  "Run one sweep of the session reaper against the store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsPurge(cmd.OutOrStdout())
		},
	}
}

func runSessionsPurge(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logger := newLogger(cfg, false, io.Discard)
	flow := newLoginFlow(cfg, st, logger)
	reaper := service.NewReaper(flow.Sessions(), cfg.ReapInterval(), nil, logger)

	n, err := reaper.RunOnce(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Purged %d expired session(s).\n", n)
	return nil
}

// ---------- sessions revoke-all ----------

func newSessionsRevokeAllCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "revoke-all",
		Short: "Log out every session, active or not",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this logs out every admin session; re-run with --yes to confirm")
			}
			return runSessionsRevokeAll(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm revocation")

	return cmd
}

func runSessionsRevokeAll(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	flow := newLoginFlow(cfg, st, newLogger(cfg, false, io.Discard))
	n, err := flow.Sessions().RevokeAll(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Revoked %d session(s).\n", n)
	return nil
}
