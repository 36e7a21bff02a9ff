package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/loanscore/pkg/artifact"
	"github.com/mchmarny/loanscore/pkg/config"
	"github.com/mchmarny/loanscore/pkg/data"
	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/mchmarny/loanscore/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appConfigKey = "app-config"

	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

const (
	configDirFlag     = "config"
	modelFlag         = "model"
	formatFlag        = "format"
	logLevelFlag      = "log-level"
	debugFlag         = "debug"
	historyFlag       = "history"
	historyDriverFlag = "history-driver"
	dsnFlag           = "dsn"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    configDirFlag,
			Usage:   "Directory holding config.yaml (default: $HOME/.loanscore)",
			Sources: cli.EnvVars("LOANSCORE_CONFIG"),
		},
		&cli.StringFlag{
			Name:  modelFlag,
			Usage: "Path to the model artifact (yaml or json), overrides config",
		},
		&cli.StringFlag{
			Name:  formatFlag,
			Usage: "Output format [json, yaml, table]",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "Log level [debug, info, warn, error]",
		},
		&cli.BoolFlag{
			Name:  debugFlag,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&cli.BoolFlag{
			Name:  historyFlag,
			Usage: "Record assessments in the history store, overrides config",
		},
		&cli.StringFlag{
			Name:  historyDriverFlag,
			Usage: "History store driver [sqlite, postgres], overrides config",
		},
		&cli.StringFlag{
			Name:  dsnFlag,
			Usage: "History store DSN (sqlite file path or postgres URL), overrides config",
		},
	}
}

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Config    *config.Config
	HomeDir   string
	Format    string
	Artifact  *artifact.Artifact
	Predictor *loan.Predictor
	Store     data.Store
	Out       io.Writer
	In        io.Reader
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:     config.AppName,
		Version:  fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Usage:    "Loan approval scoring: probability, decision, and model explanation",
		Metadata: map[string]any{},
		Flags:    rootFlags(),
		Commands: []*cli.Command{
			predictCommand(),
			explainCommand(),
			schemaCommand(),
			batchCommand(),
			historyCommand(),
			authCommand(),
			serverCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	dir := cmd.String(configDirFlag)
	if dir == "" {
		home, _, err := config.GetOrCreateHomeDir(config.AppName)
		if err != nil {
			return ctx, fmt.Errorf("resolving home dir: %w", err)
		}
		dir = home
	}

	cfg, err := config.ReadOrCreate(dir)
	if err != nil {
		return ctx, fmt.Errorf("reading config: %w", err)
	}
	applyFlags(cmd, cfg)

	logging.SetDefaultCLILogger(cfg.LogLevel)
	slog.Debug("config", "dir", dir, "model", cfg.ModelPath, "history", cfg.History.Enabled)

	a, err := artifact.LoadOrDefault(ctx, cfg.ModelPath)
	if err != nil {
		return ctx, fmt.Errorf("loading model: %w", err)
	}
	p, err := a.Predictor()
	if err != nil {
		return ctx, fmt.Errorf("building predictor: %w", err)
	}

	app := &appConfig{
		Config:    cfg,
		HomeDir:   dir,
		Format:    normalizeFormat(cfg.Format),
		Artifact:  a,
		Predictor: p,
		Out:       cmd.Root().Writer,
		In:        cmd.Root().Reader,
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.In == nil {
		app.In = os.Stdin
	}

	if cfg.History.Enabled {
		store, err := data.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return ctx, fmt.Errorf("opening history store: %w", err)
		}
		app.Store = store
	}

	cmd.Root().Metadata[appConfigKey] = app
	return ctx, nil
}

func teardown(_ context.Context, cmd *cli.Command) error {
	if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok && cfg.Store != nil {
		return cfg.Store.Close()
	}
	return nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if v := cmd.String(modelFlag); v != "" {
		cfg.ModelPath = v
	}
	if v := cmd.String(formatFlag); v != "" {
		cfg.Format = v
	}
	if v := cmd.String(logLevelFlag); v != "" {
		cfg.LogLevel = v
	}
	if cmd.Bool(debugFlag) {
		cfg.LogLevel = "debug"
	}
	if cmd.IsSet(historyFlag) {
		cfg.History.Enabled = cmd.Bool(historyFlag)
	}
	if v := cmd.String(historyDriverFlag); v != "" {
		cfg.History.Driver = v
	}
	if v := cmd.String(dsnFlag); v != "" {
		cfg.History.DSN = v
	}
}

func normalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case formatYAML, "yml":
		return formatYAML
	case formatTable, "text":
		return formatTable
	default:
		return formatJSON
	}
}

var errHistoryDisabled = errors.New("history is disabled, enable it with --history or history.enabled in config")

func (c *appConfig) store() (data.Store, error) {
	if c.Store == nil {
		return nil, errHistoryDisabled
	}
	return c.Store, nil
}

// tabular is implemented by outputs with a table rendering.
type tabular interface {
	writeTable(w io.Writer) error
}

func (c *appConfig) encode(v any) error {
	switch c.Format {
	case formatYAML:
		e := yaml.NewEncoder(c.Out)
		defer e.Close()
		return e.Encode(v)
	case formatTable:
		if t, ok := v.(tabular); ok {
			return t.writeTable(c.Out)
		}
	}
	e := json.NewEncoder(c.Out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
