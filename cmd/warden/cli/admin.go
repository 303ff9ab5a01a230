package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/warden/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin credential",
		Long:  "Set up, inspect, and unlock the single administrator credential without going through the HTTP API.",
	}

	cmd.AddCommand(newAdminSetupCmd())
	cmd.AddCommand(newAdminStatusCmd())
	cmd.AddCommand(newAdminUnlockCmd())

	return cmd
}

// ---------- admin setup ----------

func newAdminSetupCmd() *cobra.Command {
	var pw string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Set the admin password for the first time",
		Example: `  warden admin setup                       # prompts for password
  warden admin setup --password 'S3cure!pass'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminSetup(cmd.OutOrStdout(), pw)
		},
	}

	cmd.Flags().StringVar(&pw, "password", "", "Admin password (prompted if omitted)")

	return cmd
}

func runAdminSetup(out io.Writer, pw string) error {
	confirm := pw
	if pw == "" {
		var err error
		if pw, err = promptPassword(out, "Password: "); err != nil {
			return err
		}
		if confirm, err = promptPassword(out, "Confirm password: "); err != nil {
			return err
		}
	}
	if err := service.ValidateNewPassword(pw, confirm); err != nil {
		return err
	}

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
	cred, err := flow.Credentials().Bootstrap(context.Background(), pw)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyBootstrapped) {
			return fmt.Errorf("admin password is already set; change it through the API")
		}
		return err
	}

	fmt.Fprintf(out, "Admin password set for %q\n", cred.Username)
	return nil
}

func promptPassword(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// ---------- admin status ----------

func newAdminStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the admin credential state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminStatus(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type adminStatusOutput struct {
	SetUp             bool       `json:"setUp"`
	Username          string     `json:"username"`
	FailedAttempts    int        `json:"failedAttempts"`
	Locked            bool       `json:"locked"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	PasswordChangedAt *time.Time `json:"passwordChangedAt,omitempty"`
	ActiveSessions    int        `json:"activeSessions"`
}

func runAdminStatus(out io.Writer, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	flow := newLoginFlow(cfg, st, newLogger(cfg, false, io.Discard))
	status, err := flow.Credentials().Status(ctx)
	if err != nil {
		return err
	}
	active, err := flow.Sessions().CountActive(ctx)
	if err != nil {
		return err
	}

	res := adminStatusOutput{
		SetUp:             status.Bootstrapped,
		Username:          status.Username,
		FailedAttempts:    status.LoginAttempts,
		Locked:            status.Locked,
		LockedUntil:       status.LockedUntil,
		LastLoginAt:       status.LastLoginAt,
		PasswordChangedAt: status.PasswordChangedAt,
		ActiveSessions:    active,
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if !res.SetUp {
		fmt.Fprintln(out, "Admin password is not set. Run 'warden admin setup' to create it.")
		return nil
	}

	fmt.Fprintf(out, "Username:         %s\n", res.Username)
	fmt.Fprintf(out, "Failed attempts:  %d\n", res.FailedAttempts)
	if res.Locked {
		fmt.Fprintf(out, "Locked until:     %s\n", res.LockedUntil.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintln(out, "Locked:           no")
	}
	fmt.Fprintf(out, "Last login:       %s\n", formatOptionalTime(res.LastLoginAt))
	fmt.Fprintf(out, "Password changed: %s\n", formatOptionalTime(res.PasswordChangedAt))
	fmt.Fprintf(out, "Active sessions:  %d\n", res.ActiveSessions)
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC1123)
}

// ---------- admin unlock ----------

func newAdminUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Clear failed login attempts and any lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminUnlock(cmd.OutOrStdout())
		},
	}
}

func runAdminUnlock(out io.Writer) error {
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
	if err := flow.Credentials().Unlock(context.Background()); err != nil {
		if errors.Is(err, service.ErrNotBootstrapped) {
			return fmt.Errorf("admin password is not set; nothing to unlock")
		}
		return err
	}

	fmt.Fprintln(out, "Admin credential unlocked.")
	return nil
}
