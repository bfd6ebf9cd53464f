// Package commands implements the catalogc subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/cli/output"
	"github.com/estuary/flow-sub001/internal/config"
	"github.com/estuary/flow-sub001/internal/state"
)

type (
	configKey   struct{}
	loggerKey   struct{}
	rendererKey struct{}
)

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom returns the config of ctx, or the default config if none is set.
func ConfigFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{
		Catalog:     config.DefaultCatalog,
		BuildDB:     config.DefaultBuildDB,
		Output:      config.DefaultOutput,
		LogFormat:   config.DefaultLogFormat,
		Concurrency: config.DefaultConcurrency,
	}
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger of ctx, or a discarding logger if none is set.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// WithRenderer returns a context carrying r.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// CommandContext holds the shared dependencies of a command.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger, and renderer set up by the root command.
// Without a renderer in the context, one is created over the command's writers.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := ConfigFrom(ctx)

	r, ok := ctx.Value(rendererKey{}).(*output.Renderer)
	if !ok {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   LoggerFrom(ctx),
		Renderer: r,
	}
}

// openStore opens the build database, creating its directory when create is set.
// Without create, a missing database is an error.
func (c *CommandContext) openStore(create bool) (*state.SQLiteStore, error) {
	path := c.Cfg.BuildDB
	if path != "" && path != ":memory:" {
		if create {
			if dir := filepath.Dir(path); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0750); err != nil {
					return nil, fmt.Errorf("failed to create build database directory: %w", err)
				}
			}
		} else if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("no build database at %s: run 'catalogc validate' first", path)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open build database: %w", err)
	}
	return store, nil
}

// resolveBuild returns the build with id, or the latest build if id is empty.
func resolveBuild(ctx context.Context, store *state.SQLiteStore, id string) (*state.Build, error) {
	if id != "" {
		return store.GetBuild(ctx, id)
	}
	b, err := store.LatestBuild(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("no builds recorded: run 'catalogc validate' first")
	}
	return b, nil
}
