package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/estuary/flow-sub001/internal/cli/output"
)

// NewCollectionCommand creates the collection command.
func NewCollectionCommand() *cobra.Command {
	var buildID string

	cmd := &cobra.Command{
		Use:   "collection <name>",
		Short: "Show a built collection specification",
		Long: `Show the specification built for a collection: its key, projections,
partitions, and journal policy. The latest build is used unless --build is given.`,
		Example: `  # Projections of acme/orders
  catalogc collection acme/orders

  # The full specification as JSON
  catalogc collection acme/orders -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			store, err := cmdCtx.openStore(false)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			b, err := resolveBuild(cmd.Context(), store, buildID)
			if err != nil {
				return err
			}
			bc, err := store.GetBuiltCollection(cmd.Context(), b.ID, args[0])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(bc)
			}

			spec := bc.Spec
			r.Header(1, "Collection "+spec.Name)
			r.Printf("Scope:      %s\n", bc.Scope)
			r.Printf("Schema:     %s\n", spec.SchemaURI)
			r.Printf("Key:        %s\n", strings.Join(spec.KeyPtrs, ", "))
			r.Printf("Partitions: %s\n", strings.Join(spec.PartitionFields, ", "))
			r.Printf("Stores:     %s\n", strings.Join(spec.JournalSpec.Fragment.Stores, ", "))
			r.Println()

			r.Header(2, fmt.Sprintf("Projections (%d)", len(spec.Projections)))
			rows := make([][]string, len(spec.Projections))
			for i, p := range spec.Projections {
				rows[i] = []string{
					p.Field,
					p.Ptr,
					strings.Join(p.Inference.Types, ", "),
					yesNo(p.IsPrimaryKey),
					yesNo(p.IsPartitionKey),
					yesNo(p.UserProvided),
				}
			}
			r.Table([]string{"Field", "Location", "Types", "Key", "Partition", "Declared"}, rows, nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&buildID, "build", "", "Build to read (default: latest)")

	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
