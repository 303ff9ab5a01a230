package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/password"
	"github.com/faucetdb/warden/internal/service"
	"github.com/faucetdb/warden/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// store.data_dir (config file or WARDEN_STORE_DATA_DIR), WARDEN_DATA_DIR, or
// ~/.warden as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if dir := viper.GetString("store.data_dir"); dir != "" {
		return dir
	}
	if envDir := os.Getenv("WARDEN_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".warden")
}

// loadConfig returns the validated effective configuration.
func loadConfig() (*config.YAMLConfig, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// openStore connects to the configured credential store. SQLite lives under
// the data directory; other engines use store.dsn.
func openStore(cfg *config.YAMLConfig) (*store.Store, error) {
	dialect, err := store.ParseDialect(cfg.Store.Driver)
	if err != nil {
		return nil, err
	}
	if dialect == store.DialectSQLite {
		return store.NewStore(resolveDataDir())
	}
	return store.Open(dialect, cfg.Store.DSN)
}

// newLogger builds the root logger from log.level and log.format. dev forces
// debug level.
func newLogger(cfg *config.YAMLConfig, dev bool, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newLoginFlow wires the credential and session services over st.
func newLoginFlow(cfg *config.YAMLConfig, st *store.Store, logger *slog.Logger) *service.LoginFlow {
	creds := service.NewCredentials(st,
		service.WithHasher(password.Default()),
		service.WithUsername(cfg.Auth.AdminUsername),
		service.WithLogger(logger),
	)
	sessions := service.NewSessions(st, nil, logger)
	return service.NewLoginFlow(creds, sessions, logger)
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "warden.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "warden.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	return "v" + strings.TrimPrefix(appVersion, "v")
}
