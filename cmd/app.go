package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/config"
	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/gmail"
	"github.com/teemow/inboxtriage/internal/google"
	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/oracle"
	"github.com/teemow/inboxtriage/internal/preflight"
)

// persistentBindings maps config keys to the persistent root flags.
var persistentBindings = map[string]string{
	"credentials_dir": "credentials-dir",
	"output_dir":      "output-dir",
	"log.level":       "log-level",
	"log.format":      "log-format",
}

// app holds what a command needs after configuration has been loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
}

// loadConfig reads the configuration, letting the given flags of cmd
// override their keys.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags(), persistentBindings); err != nil {
		return nil, err
	}
	if err := loader.BindFlags(cmd.Flags(), bindings); err != nil {
		return nil, err
	}
	return loader.Load(rootFlags.configFile)
}

// newApp loads the configuration and sets up logging and instrumentation.
// Call shutdown when done.
func newApp(ctx context.Context, cmd *cobra.Command, bindings map[string]string) (*app, error) {
	cfg, err := loadConfig(cmd, bindings)
	if err != nil {
		return nil, err
	}

	logOpts := cfg.Logging()
	logOpts.Output = cmd.ErrOrStderr()
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	if cfg.File != "" {
		logger.Debug("loaded configuration", "file", cfg.File)
	}
	return &app{cfg: cfg, logger: logger, provider: provider}, nil
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}

func (a *app) metrics() *instrumentation.Metrics {
	return a.provider.Metrics()
}

func (a *app) log() logging.Logger {
	return logging.NewSlogAdapter(a.logger)
}

func (a *app) tokenStore() (google.TokenStore, error) {
	return google.NewTokenStore(a.cfg.Auth.TokenStore, a.cfg.CredentialsDir)
}

func (a *app) checkpointStore() *checkpoint.Store {
	return checkpoint.NewStore(a.cfg.CheckpointPath())
}

func (a *app) oracleClient() *oracle.Client {
	return oracle.NewClient(a.cfg.OracleClient(),
		oracle.WithMetrics(a.metrics()),
		oracle.WithLogger(a.log()),
	)
}

// preflight verifies credentials and the oracle before any Gmail call.
func (a *app) preflight(ctx context.Context, tokens google.TokenStore, oc *oracle.Client) preflight.Report {
	return preflight.Run(ctx, preflight.Options{
		ClientSecretPath: a.cfg.ClientSecretPath(),
		Tokens:           tokens,
		Oracle:           oc,
	})
}

// gmailClient builds an authorized Gmail gateway.
func (a *app) gmailClient(ctx context.Context, tokens google.TokenStore) (*gmail.Client, error) {
	conf, err := google.LoadConfig(a.cfg.ClientSecretPath())
	if err != nil {
		return nil, err
	}
	httpClient, err := google.HTTPClient(ctx, conf, tokens)
	if err != nil {
		return nil, err
	}
	return gmail.NewClient(ctx, httpClient, a.cfg.GmailClient(),
		gmail.WithMetrics(a.metrics()),
		gmail.WithLogger(a.log()),
	)
}

// pipeline is a ready-to-run engine and the pieces it was built from.
type pipeline struct {
	engine *engine.Engine
	store  *checkpoint.Store
}

// newPipeline runs the preflight checks and wires the engine. observer
// receives the run events.
func (a *app) newPipeline(ctx context.Context, observer engine.Observer) (*pipeline, error) {
	tokens, err := a.tokenStore()
	if err != nil {
		return nil, err
	}
	oc := a.oracleClient()

	report := a.preflight(ctx, tokens, oc)
	for _, res := range report.Results {
		if res.OK {
			a.logger.Debug("preflight check passed", "check", res.Name, "detail", res.Message)
		}
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	gc, err := a.gmailClient(ctx, tokens)
	if err != nil {
		return nil, err
	}

	store := a.checkpointStore()
	eng, err := engine.New(a.cfg.Engine(), gc, oc, store,
		engine.WithObserver(observer),
		engine.WithMetrics(a.metrics()),
		engine.WithLogger(a.log()),
	)
	if err != nil {
		return nil, err
	}
	return &pipeline{engine: eng, store: store}, nil
}
