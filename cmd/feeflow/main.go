// Command feeflow keeps project statuses and project folders in step and
// serves the engine over MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ganot/feeflow/internal/app"
	"github.com/ganot/feeflow/internal/config"
	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/sqlite"
	"github.com/ganot/feeflow/internal/telemetry"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	basePath   string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "feeflow",
		Short:         "Project status and folder synchronization engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `feeflow moves project folders between the canonical status roots when a
project or proposal status changes, and reports drift between the folder
tree and the project records.

Settings come from an optional YAML file (--config or FEEFLOW_CONFIG_PATH)
and FEEFLOW_* environment variables.`,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.basePath, "base", "", "Project base path (overrides FEEFLOW_BASE_PATH)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(flags),
		scanCmd(flags),
		locateCmd(flags),
		validateCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "feeflow version %s (build: %s)\n", Version, BuildTime)
			},
		},
	)
	return cmd
}

func loadConfig(flags *globalFlags) (config.Config, error) {
	if flags.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnv, flags.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flags.basePath != "" {
		cfg.BasePath = flags.basePath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// engine is an App together with the resources it owns.
type engine struct {
	*app.App
	logger *slog.Logger
	close  func()
}

func openEngine(ctx context.Context, cfg config.Config) (*engine, error) {
	logger, closeLog, err := newLogger(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	if err := ensureDir(cfg.DB.Path); err != nil {
		closeLog()
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		closeLog()
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		closeLog()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a, err := app.New(cfg, db, app.Options{Version: Version, Logger: logger})
	if err != nil {
		_ = db.Close()
		closeLog()
		return nil, err
	}

	return &engine{
		App:    a,
		logger: logger,
		close: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Warn("tracing shutdown", "error", err)
			}
			_ = db.Close()
			closeLog()
		},
	}, nil
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over MCP and run background scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Transport.Mode = transport
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := openEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.close()

			background := make(chan error, 1)
			go func() { background <- e.RunBackground(ctx) }()

			if cfg.Transport.Mode == "stdio" {
				err = runStdio(ctx, e)
			} else {
				err = runHTTP(ctx, e, cfg.Server.Host, cfg.Server.Port)
			}
			stop()
			if bgErr := <-background; bgErr != nil {
				e.logger.Error("background tasks failed", "error", bgErr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "", "Transport mode (stdio or http)")
	return cmd
}

func runStdio(ctx context.Context, e *engine) error {
	e.logger.Info("starting stdio transport", "base_path", e.Resolver.Base())
	// Run blocks until stdin closes or ctx is done.
	if err := e.Server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, e *engine, host string, port int) error {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return e.Server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.Handle("/metrics", e.Metrics.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := folder.ValidateBase(e.Resolver.Base()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		e.logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func scanCmd(flags *globalFlags) *cobra.Command {
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one reconciliation scan and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			e, err := openEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.Schedule.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if failOnDrift && !report.Clean() {
				return fmt.Errorf("drift found: %d findings", len(report.Findings()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit non-zero when the report is not clean")
	return cmd
}

func locateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <number>",
		Short: "Print the folder of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			folders, err := cfg.FolderMap()
			if err != nil {
				return err
			}
			loc, err := folder.NewResolver(cfg.BasePath, folders).Locate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc.Path)
			return nil
		},
	}
}

func validateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the base path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			folders, err := cfg.FolderMap()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "base path: %s\n", cfg.BasePath)
			missing := folder.MissingRoots(cfg.BasePath, folders)
			for _, root := range missing {
				fmt.Fprintf(out, "missing root: %s\n", root)
			}
			if len(missing) == 0 {
				fmt.Fprintln(out, "all canonical roots present")
			}
			return nil
		},
	}
}
