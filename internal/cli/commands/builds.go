package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/cli/output"
)

// NewBuildsCommand creates the builds command.
func NewBuildsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List recorded builds",
		Long:  `List the builds recorded in the build database, newest first.`,
		Example: `  # The ten most recent builds
  catalogc builds

  # All builds as JSON
  catalogc builds --limit 0 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.openStore(false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			// SQLite treats a negative limit as no limit.
			if limit <= 0 {
				limit = -1
			}
			builds, err := store.ListBuilds(cmd.Context(), limit)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				out := make([]output.BuildSummary, len(builds))
				for i, b := range builds {
					out[i] = buildSummary(b)
				}
				return r.JSON(out)
			}

			r.Header(1, "Builds")
			if len(builds) == 0 {
				r.Muted("No builds recorded")
				return nil
			}
			rows := make([][]string, len(builds))
			for i, b := range builds {
				rows[i] = []string{
					b.ID,
					b.StartedAt.Local().Format(time.DateTime),
					b.Root,
					strconv.Itoa(b.Collections),
					strconv.Itoa(b.Materializations),
					strconv.Itoa(b.Errors),
					strconv.Itoa(b.Warnings),
				}
			}
			r.Table([]string{"Build", "Started", "Catalog", "Collections", "Materializations", "Errors", "Warnings"}, rows,
				func(col int, cell string) string {
					if col == 5 && cell != "0" {
						return r.Styles().Error.Render(cell)
					}
					return cell
				})
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of builds to list (0 for all)")

	return cmd
}
