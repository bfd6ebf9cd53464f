package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/cli/output"
	"github.com/estuary/flow-sub001/internal/driver"
	"github.com/estuary/flow-sub001/internal/validation"
)

// ErrValidationFailed is returned when a catalog has errors, or warnings under --fail-on-warning.
var ErrValidationFailed = errors.New("catalog validation failed")

const defaultDebounce = 100 * time.Millisecond

// ValidateOptions configures the validate command.
type ValidateOptions struct {
	NoPersist     bool
	FailOnWarning bool
	Watch         bool
	// Drivers overrides the drivers built from configuration.
	Drivers driver.Drivers
	// Debounce delays re-validation after a change in watch mode.
	Debounce time.Duration

	// afterRun observes each completed pass.
	afterRun func(*validation.Result)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return newValidateCommand(&ValidateOptions{})
}

func newValidateCommand(opts *ValidateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Validate a catalog and build its specifications",
		Long: `Validate the resolved tables of a catalog: references, schemas, keys,
projections, derivations, materializations, and tests.

Every problem is reported rather than only the first. Each pass is recorded
in the build database with its diagnostics and built specifications,
unless --no-persist is given.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Validate the configured catalog
  catalogc validate

  # Validate a specific tables file as JSON
  catalogc validate build/tables.yaml -o json

  # Re-validate whenever the catalog changes
  catalogc validate --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			path := cmdCtx.Cfg.Catalog
			if len(args) == 1 {
				path = args[0]
			}

			drivers := opts.Drivers
			if drivers == nil {
				router, err := cmdCtx.Cfg.NewDrivers(cmdCtx.Logger)
				if err != nil {
					return err
				}
				drivers = router
			}

			v := &validateRun{CommandContext: cmdCtx, opts: opts, path: path, drivers: drivers}
			if opts.Watch {
				return v.watch(cmd.Context())
			}
			return v.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&opts.NoPersist, "no-persist", false, "Do not record the build in the build database")
	cmd.Flags().BoolVar(&opts.FailOnWarning, "fail-on-warning", false, "Exit non-zero when there are warnings")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-validate when the catalog changes")

	return cmd
}

type validateRun struct {
	*CommandContext
	opts    *ValidateOptions
	path    string
	drivers driver.Drivers
}

// run performs one validation pass.
func (v *validateRun) run(ctx context.Context) error {
	tables, err := catalog.LoadTables(v.path)
	if err != nil {
		return err
	}

	started := time.Now()
	res := validation.Validate(ctx, validation.Config{
		Drivers:     v.drivers,
		Logger:      v.Logger,
		Concurrency: v.Cfg.Concurrency,
	}, tables)
	elapsed := time.Since(started)

	errs, warnings := res.Count()
	summary := output.BuildSummary{
		Catalog:          v.path,
		StartedAt:        started.UTC(),
		ElapsedMS:        elapsed.Milliseconds(),
		Collections:      len(res.BuiltCollections),
		Materializations: len(res.BuiltMaterializations),
		Errors:           errs,
		Warnings:         warnings,
	}

	if !v.opts.NoPersist {
		id, err := v.persist(ctx, started, elapsed, res)
		if err != nil {
			return err
		}
		summary.BuildID = id
	}

	if err := v.render(summary, res); err != nil {
		return err
	}
	if v.opts.afterRun != nil {
		v.opts.afterRun(res)
	}

	if errs > 0 || (v.opts.FailOnWarning && warnings > 0) {
		return ErrValidationFailed
	}
	return nil
}

func (v *validateRun) persist(ctx context.Context, started time.Time, elapsed time.Duration, res *validation.Result) (string, error) {
	store, err := v.openStore(true)
	if err != nil {
		return "", err
	}
	defer func() { _ = store.Close() }()

	b, err := store.SaveBuild(ctx, v.path, started, elapsed, res)
	if err != nil {
		return "", fmt.Errorf("failed to record build: %w", err)
	}
	v.Logger.Debug("build recorded", slog.String("build_id", b.ID))
	return b.ID, nil
}

func (v *validateRun) render(summary output.BuildSummary, res *validation.Result) error {
	r := v.Renderer
	diags := diagnostics(res.Errors)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.ValidateOutput{Summary: summary, Diagnostics: diags})
	}
	r.Header(1, "Catalog "+v.path)
	r.Diagnostics(diags)
	r.Println()
	r.Summary(summary)
	return nil
}

// watch validates the catalog, then again after each change until ctx is done.
func (v *validateRun) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(v.path)
	if err != nil {
		return err
	}
	// Watch the directory: editors often replace files rather than write them.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	debounce := v.opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	v.runWatched(ctx)

	rerun := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})
		case <-rerun:
			v.Logger.Info("catalog changed", slog.String("path", v.path))
			v.runWatched(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			v.Logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// runWatched runs a pass, reporting rather than returning its failure.
func (v *validateRun) runWatched(ctx context.Context) {
	err := v.run(ctx)
	if err != nil && !errors.Is(err, ErrValidationFailed) {
		v.Renderer.Error(err.Error())
	}
}

// diagnostics converts validation errors for output.
func diagnostics(errs []*validation.Error) []output.Diagnostic {
	out := make([]output.Diagnostic, len(errs))
	for i, e := range errs {
		msg := e.Message
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
		out[i] = output.Diagnostic{
			Severity: string(e.Severity),
			Kind:     string(e.Kind),
			Scope:    string(e.Scope),
			Message:  msg,
		}
	}
	return out
}
