package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/cli/output"
)

// NewMaterializationsCommand creates the materializations command.
func NewMaterializationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "materializations [build-id]",
		Aliases: []string{"mats"},
		Short:   "List built materializations and their selected fields",
		Long: `List the materializations of a recorded build with the key, value, and
document fields selected for each. Without a build ID, the latest build is shown.`,
		Example: `  # Field selections of the latest build
  catalogc materializations

  # As JSON, including endpoint configuration
  catalogc materializations -o json`,
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
			bms, err := store.ListBuiltMaterializations(cmd.Context(), b.ID)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(bms)
			}

			r.Header(1, "Materializations")
			if len(bms) == 0 {
				r.Muted("No materializations built")
				return nil
			}
			rows := make([][]string, len(bms))
			for i, m := range bms {
				rows[i] = []string{
					m.Name,
					m.Collection,
					string(m.EndpointType),
					strings.Join(m.Fields.Keys, ", "),
					strings.Join(m.Fields.Values, ", "),
					m.Fields.Document,
				}
			}
			r.Table([]string{"Name", "Collection", "Endpoint", "Keys", "Values", "Document"}, rows, nil)
			return nil
		},
	}
}
