package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/cli/output"
	"github.com/estuary/flow-sub001/internal/state"
)

// NewErrorsCommand creates the errors command.
func NewErrorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [build-id]",
		Short: "Show the diagnostics of a recorded build",
		Long: `Show the errors and warnings of a recorded build, in the order they were found.
Without a build ID, the latest build is shown.`,
		Example: `  # Diagnostics of the latest build
  catalogc errors

  # Diagnostics of a specific build as JSON
  catalogc errors 0b6c2f0e-... -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.openStore(false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			b, err := resolveBuild(cmd.Context(), store, id)
			if err != nil {
				return err
			}
			errs, err := store.ListErrors(cmd.Context(), b.ID)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			summary := buildSummary(b)
			diags := buildDiagnostics(errs)
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ValidateOutput{Summary: summary, Diagnostics: diags})
			}
			r.Header(1, fmt.Sprintf("Build %s", b.ID))
			r.Diagnostics(diags)
			r.Println()
			r.Summary(summary)
			return nil
		},
	}
}

func buildSummary(b *state.Build) output.BuildSummary {
	return output.BuildSummary{
		BuildID:          b.ID,
		Catalog:          b.Root,
		StartedAt:        b.StartedAt,
		ElapsedMS:        b.Elapsed.Milliseconds(),
		Collections:      b.Collections,
		Materializations: b.Materializations,
		Errors:           b.Errors,
		Warnings:         b.Warnings,
	}
}

func buildDiagnostics(errs []*state.BuildError) []output.Diagnostic {
	out := make([]output.Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = output.Diagnostic{
			Severity: string(e.Severity),
			Kind:     string(e.Kind),
			Scope:    string(e.Scope),
			Message:  e.Message,
		}
	}
	return out
}
