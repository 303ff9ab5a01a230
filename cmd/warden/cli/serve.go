package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/warden/internal/server"
	"github.com/faucetdb/warden/internal/service"
)

const banner = `
__      ____ _ _ __ __| | ___ _ __
\ \ /\ / / _' | '__/ _' |/ _ \ '_ \
 \ V  V / (_| | | | (_| |  __/ | | |
  \_/\_/ \__,_|_|  \__,_|\___|_| |_|
`

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		dev        bool
		background bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Warden auth server",
		Long:  "Start the HTTP server that exposes the admin authentication API and the session reaper.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return runBackground(cmd.OutOrStdout())
			}
			return runServe(cmd.OutOrStdout(), dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, error details in responses)")
	cmd.Flags().BoolVarP(&background, "background", "d", false, "Run the server in the background, logging to the data directory")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(out io.Writer, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprint(out, banner)
	fmt.Fprintln(out)

	logger := newLogger(cfg, dev, os.Stderr)

	// 1. Open the credential store
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Dialect(), "data_dir", resolveDataDir())

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "path", pidFilePath(), "error", err)
	} else {
		defer removePID()
	}

	// 2. Wire the login flow and the reaper
	flow := newLoginFlow(cfg, st, logger)
	reaper := service.NewReaper(flow.Sessions(), cfg.ReapInterval(), nil, logger)

	// 3. Check for first run
	first, err := flow.IsFirstLogin(context.Background())
	if err != nil {
		logger.Warn("failed to check admin credential", "error", err)
	}
	if first {
		logger.Warn("admin password not set - POST /api/auth/setup-password or run: warden admin setup")
	}

	// 4. Build and start HTTP server
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		CORSOrigins:     cfg.Server.CORS.Origins,
		MaxBodySize:     cfg.MaxBodySize(),
		CookieName:      cfg.Auth.CookieName,
		SecureCookie:    cfg.Auth.SecureCookie,
		LoginRateLimit:  cfg.Auth.LoginRateLimit,
		LoginRateWindow: cfg.LoginRateWindow(),
		APIRateLimit:    cfg.Auth.APIRateLimit,
		Dev:             dev,
		Version:         versionString(),
	}
	srv := server.New(srvCfg, st, flow, reaper, logger)

	base := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "→ Warden %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on %s\n", base)
	fmt.Fprintf(out, "→ Auth API:   %s/api/auth\n", base)
	fmt.Fprintf(out, "→ OpenAPI:    %s/openapi.json\n", base)
	fmt.Fprintf(out, "→ Health:     %s/healthz\n", base)
	fmt.Fprintln(out)

	return srv.ListenAndServe(context.Background())
}

// runBackground re-executes the current binary without --background,
// detached from the terminal, with output appended to the log file.
func runBackground(out io.Writer) error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, foregroundArgs(os.Args[1:])...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}

	fmt.Fprintf(out, "Warden started in the background (PID %d)\n", child.Process.Pid)
	fmt.Fprintf(out, "  Logs: %s\n", logFilePath())
	return child.Process.Release()
}

// foregroundArgs strips the background flag from args.
func foregroundArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch a {
		case "--background", "-d", "--background=true":
			continue
		}
		out = append(out, a)
	}
	return out
}
