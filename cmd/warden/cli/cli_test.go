package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// run executes the root command with args against a fresh viper instance and
// returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newRootCmd("1.2.3", "abc123", "2026-01-01")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v; output = %s", err, out)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" {
		t.Errorf("info = %+v", info)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")

	out, err := run(t, "config", "init", "-o", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Created "+path) {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "config", "init", "-o", path); err == nil {
		t.Error("expected error when the file exists without --force")
	}
	if _, err := run(t, "config", "init", "-o", path, "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out, err = run(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	os.WriteFile(path, []byte("store:\n  driver: postgres\nlog:\n  format: xml\n"), 0644)

	_, err := run(t, "config", "validate", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"store.dsn", "log.format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestConfigShowUsesFileAndMasksDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.yaml")
	os.WriteFile(path, []byte("auth:\n  cookie_name: warden_session\nstore:\n  dsn: secret-dsn\n"), 0644)

	out, err := run(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "cookie_name: warden_session") {
		t.Errorf("file value missing from output:\n%s", out)
	}
	if strings.Contains(out, "secret-dsn") {
		t.Errorf("dsn not masked:\n%s", out)
	}
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "show")
	if err == nil {
		t.Fatal("expected error for a missing --config file")
	}
}

func TestAdminLifecycle(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "--data-dir", dir, "admin", "status")
	if err != nil {
		t.Fatalf("admin status: %v", err)
	}
	if !strings.Contains(out, "not set") {
		t.Errorf("status before setup = %q", out)
	}

	if _, err := run(t, "--data-dir", dir, "admin", "unlock"); err == nil {
		t.Error("expected unlock to fail before setup")
	}

	if _, err := run(t, "--data-dir", dir, "admin", "setup", "--password", "weak"); err == nil {
		t.Error("expected weak password to be rejected")
	}

	out, err = run(t, "--data-dir", dir, "admin", "setup", "--password", "Abcdef1!")
	if err != nil {
		t.Fatalf("admin setup: %v", err)
	}
	if !strings.Contains(out, `"admin"`) {
		t.Errorf("setup output = %q", out)
	}

	if _, err := run(t, "--data-dir", dir, "admin", "setup", "--password", "Zyxwvu9!"); err == nil {
		t.Error("expected second setup to fail")
	}

	out, err = run(t, "--data-dir", dir, "admin", "status", "--json")
	if err != nil {
		t.Fatalf("admin status --json: %v", err)
	}
	var status adminStatusOutput
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode: %v; output = %s", err, out)
	}
	if !status.SetUp || status.Username != "admin" || status.Locked || status.ActiveSessions != 0 {
		t.Errorf("status = %+v", status)
	}

	if _, err := run(t, "--data-dir", dir, "admin", "unlock"); err != nil {
		t.Errorf("admin unlock: %v", err)
	}
}

func TestAdminSetupUsesConfiguredUsername(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WARDEN_AUTH_ADMIN_USERNAME", "root")

	if _, err := run(t, "--data-dir", dir, "admin", "setup", "--password", "Abcdef1!"); err != nil {
		t.Fatalf("admin setup: %v", err)
	}
	out, err := run(t, "--data-dir", dir, "admin", "status", "--json")
	if err != nil {
		t.Fatalf("admin status: %v", err)
	}
	var status adminStatusOutput
	json.Unmarshal([]byte(out), &status)
	if status.Username != "root" {
		t.Errorf("username = %q, want root", status.Username)
	}
}

func TestSessionsCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "--data-dir", dir, "sessions", "purge")
	if err != nil {
		t.Fatalf("sessions purge: %v", err)
	}
	if !strings.Contains(out, "Purged 0") {
		t.Errorf("purge output = %q", out)
	}

	if _, err := run(t, "--data-dir", dir, "sessions", "revoke-all"); err == nil {
		t.Error("expected revoke-all to require --yes")
	}

	out, err = run(t, "--data-dir", dir, "sessions", "revoke-all", "--yes")
	if err != nil {
		t.Fatalf("sessions revoke-all: %v", err)
	}
	if !strings.Contains(out, "Revoked 0") {
		t.Errorf("revoke output = %q", out)
	}
}

func TestOpenAPICommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")

	if _, err := run(t, "openapi", "--server-url", "https://auth.example.com", "-o", path); err != nil {
		t.Fatalf("openapi: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read spec: %v", err)
	}

	var doc struct {
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode spec: %v", err)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "https://auth.example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if _, ok := doc.Paths["/api/auth/setup-password"]; !ok {
		t.Error("/api/auth/setup-password missing from spec")
	}
}

func TestStatusWithoutServer(t *testing.T) {
	out, err := run(t, "--data-dir", t.TempDir(), "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "--data-dir", t.TempDir(), "stop"); err == nil {
		t.Error("expected stop to fail without a PID file")
	}
}

func TestForegroundArgs(t *testing.T) {
	got := foregroundArgs([]string{"serve", "--background", "--port", "9000", "-d", "--dev"})
	want := []string{"serve", "--port", "9000", "--dev"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("foregroundArgs = %v, want %v", got, want)
	}
}
