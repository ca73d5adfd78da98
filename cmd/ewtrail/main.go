// Command ewtrail runs the e-waste chain-of-custody service and its audit tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/ewtrail/internal/adapters/metrics"
	serveradapter "github.com/hylla/ewtrail/internal/adapters/server"
	servercommon "github.com/hylla/ewtrail/internal/adapters/server/common"
	"github.com/hylla/ewtrail/internal/adapters/storage/sqlstore"
	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/config"
	"github.com/hylla/ewtrail/internal/platform"
)

var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// errChainBroken is returned by verify so the process exits non-zero.
var errChainBroken = errors.New("audit chain broken")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with fang-styled help and errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dbPath     string
	dsn        string
	appName    string
	devMode    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &globalOptions{appName: platform.AppName}
	if envApp := strings.TrimSpace(os.Getenv("EWTRAIL_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("EWTRAIL_DEV_MODE"); ok {
		defaultDevMode = envDev
	}

	root := &cobra.Command{
		Use:           "ewtrail",
		Short:         "E-waste chain-of-custody ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.dsn, "dsn", "", "postgres connection string (selects the postgres driver)")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newServeCmd(opts),
		newVerifyCmd(opts),
		newAnomaliesCmd(opts),
		newLotsCmd(opts),
		newCreditsCmd(opts),
		newPathsCmd(opts),
	)
	return root
}

func newPathsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log: %s\n", paths.LogPath)
			return nil
		},
	}
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		httpBind        string
		apiEndpoint     string
		mcpEndpoint     string
		metricsEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, MCP tools and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr(), "serve")
			if err != nil {
				return err
			}
			defer rt.Close()

			serverCfg := rt.cfg.Server
			if cmd.Flags().Changed("http") {
				serverCfg.HTTPBind = httpBind
			}
			if cmd.Flags().Changed("api-endpoint") {
				serverCfg.APIEndpoint = apiEndpoint
			}
			if cmd.Flags().Changed("mcp-endpoint") {
				serverCfg.MCPEndpoint = mcpEndpoint
			}
			if cmd.Flags().Changed("metrics-endpoint") {
				serverCfg.MetricsEndpoint = metricsEndpoint
			}

			rt.logger.Info("command flow start", "command", "serve", "http_bind", serverCfg.HTTPBind)
			err = serveCommandRunner(cmd.Context(), serveradapter.Config{
				HTTPBind:        serverCfg.HTTPBind,
				APIEndpoint:     serverCfg.APIEndpoint,
				MCPEndpoint:     serverCfg.MCPEndpoint,
				MetricsEndpoint: serverCfg.MetricsEndpoint,
				ServerName:      opts.appName,
				ServerVersion:   version,
			}, serveradapter.Dependencies{
				Service: rt.adapter,
				Metrics: rt.metrics.Handler(),
				Ready:   rt.repo.Ping,
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (overrides server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	cmd.Flags().StringVar(&metricsEndpoint, "metrics-endpoint", "", "Prometheus metrics endpoint")
	return cmd
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify <entity-type> <entity-id>",
		Short: "Recompute the audit hash chain of one pickup or lot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr(), "verify")
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.adapter.VerifyChain(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("verify chain: %w", err)
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderVerification(out))
			}
			if !out.OK {
				rt.logger.Warn("audit chain broken", "entity_type", out.EntityType, "entity_id", out.EntityID, "entry_id", out.BrokenAtEntryID)
				return fmt.Errorf("%w at entry %s", errChainBroken, out.BrokenAtEntryID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification result as JSON")
	return cmd
}

func newAnomaliesCmd(opts *globalOptions) *cobra.Command {
	var req servercommon.ListAnomaliesRequest
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "List flagged custody anomalies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr(), "anomalies")
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.adapter.ListAnomalies(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("list anomalies: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderAnomalies(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.EntityType, "entity-type", "", "filter by entity type")
	cmd.Flags().StringVar(&req.EntityID, "entity-id", "", "filter by entity id")
	cmd.Flags().StringVar(&req.Severity, "severity", "", "filter by severity (LOW, MEDIUM, HIGH)")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum rows")
	return cmd
}

func newLotsCmd(opts *globalOptions) *cobra.Command {
	var req servercommon.ListLotsRequest
	cmd := &cobra.Command{
		Use:   "lots",
		Short: "List lots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr(), "lots")
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.adapter.ListLots(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("list lots: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderLots(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.HubID, "hub", "", "filter by hub id")
	cmd.Flags().StringVar(&req.RecyclerID, "recycler", "", "filter by recycler id")
	cmd.Flags().StringVar(&req.Status, "status", "", "filter by lot status")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum rows")
	return cmd
}

func newCreditsCmd(opts *globalOptions) *cobra.Command {
	var req servercommon.ListEprCreditsRequest
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "List EPR credits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr(), "credits")
			if err != nil {
				return err
			}
			defer rt.Close()

			rows, err := rt.adapter.ListEprCredits(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("list epr credits: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderCredits(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.BrandID, "brand", "", "filter by brand id")
	cmd.Flags().StringVar(&req.LotID, "lot", "", "filter by lot id")
	cmd.Flags().StringVar(&req.ReportingPeriod, "period", "", "filter by reporting period")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum rows")
	return cmd
}

func (o *globalOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolveConfig layers defaults, the TOML file, the environment and flags.
func (o *globalOptions) resolveConfig(getenv func(string) string) (config.Config, string, platform.Paths, error) {
	paths, err := o.paths()
	if err != nil {
		return config.Config{}, "", platform.Paths{}, err
	}
	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(getenv(config.EnvConfigPath)); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(paths.DBPath))
	if err != nil {
		return config.Config{}, "", platform.Paths{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg = cfg.ApplyEnv(getenv)
	if dbPath := strings.TrimSpace(o.dbPath); dbPath != "" {
		cfg.Database.Path = dbPath
		cfg.Database.Driver = config.DriverSQLite
	}
	if dsn := strings.TrimSpace(o.dsn); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Driver = config.DriverPostgres
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", platform.Paths{}, fmt.Errorf("validate config %q: %w", configPath, err)
	}
	return cfg, configPath, paths, nil
}

// runtimeDeps bundles everything one command needs against the store.
type runtimeDeps struct {
	cfg     config.Config
	logger  *runtimeLogger
	repo    *sqlstore.Repository
	metrics *metrics.Recorder
	adapter *servercommon.AppServiceAdapter
}

// openRuntime resolves config, starts logging and opens the configured store.
func openRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer, command string) (*runtimeDeps, error) {
	cfg, configPath, paths, err := opts.resolveConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	devFile := strings.TrimSpace(cfg.Logging.DevFile)
	if devFile == "" && opts.devMode {
		devFile = paths.LogPath
	}
	logger, err := newRuntimeLogger(stderr, opts.appName, level, devFile)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_driver", cfg.Database.Driver)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		logger.Error("repository open failed", "driver", cfg.Database.Driver, "err", err)
		_ = logger.Close()
		return nil, err
	}
	logger.Info("repository ready", "driver", cfg.Database.Driver, "migrations", "ensured")

	recorder := metrics.New()
	svc := app.NewService(repo, uuid.NewString, time.Now, app.ServiceConfig{
		WeightVarianceThreshold: cfg.WeightVarianceThreshold(),
		Observer:                recorder,
		Logger:                  logger,
	})
	logger.Debug("application service initialized", "weight_variance_threshold_pct", cfg.Custody.WeightVarianceThresholdPct)

	return &runtimeDeps{
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
		metrics: recorder,
		adapter: servercommon.NewAppServiceAdapter(svc),
	}, nil
}

// Close releases the store and the log file.
func (r *runtimeDeps) Close() {
	if err := r.repo.Close(); err != nil {
		r.logger.Warn("repository close failed", "err", err)
	}
	_ = r.logger.Close()
}

func openRepository(ctx context.Context, db config.DatabaseConfig) (*sqlstore.Repository, error) {
	switch db.Driver {
	case config.DriverPostgres:
		repo, err := sqlstore.OpenPostgres(ctx, db.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres repository: %w", err)
		}
		return repo, nil
	default:
		repo, err := sqlstore.OpenSQLite(ctx, db.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	}
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
