package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/structkit/internal/dag"
	"github.com/leapstack-labs/structkit/pkg/schema"
	"github.com/spf13/cobra"
)

// NewFmtCommand creates the fmt command.
func NewFmtCommand() *cobra.Command {
	var (
		write         bool
		noHelperExprs bool
		sortDeps      bool
	)

	cmd := &cobra.Command{
		Use:   "fmt <schema-file>...",
		Short: "Print schema files in canonical form",
		Long: `Parse schema files and print them back in canonical form: one field
per line, two space indent, a single space around ':' and '|', and a blank
line between structs. Comments are not preserved.`,
		Example: `  # Print the canonical form
  structctl fmt shapes.struct

  # Rewrite files in place
  structctl fmt -w shapes.struct scene.struct

  # Strip helper expressions
  structctl fmt --no-helpers shapes.struct

  # Declare embedded structs first
  structctl fmt --sort scene.struct`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(cmd, args, write, noHelperExprs, sortDeps)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to each file")
	cmd.Flags().BoolVar(&noHelperExprs, "no-helpers", false, "Omit helper expressions")
	cmd.Flags().BoolVar(&sortDeps, "sort", false, "Place embedded structs before the structs embedding them")

	return cmd
}

func runFmt(cmd *cobra.Command, paths []string, write, noHelperExprs, sortDeps bool) error {
	cmdCtx := NewCommandContext(cmd)

	for _, path := range paths {
		defs, err := parseSchemaFile(path)
		if err != nil {
			return err
		}
		if sortDeps {
			if defs, err = sortByEmbedding(defs); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		text := schema.Format(defs, noHelperExprs)

		if !write {
			cmdCtx.Renderer.Printf("%s", text)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(text), info.Mode().Perm()); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		cmdCtx.Logger.Debug("formatted schema", "path", path, "structs", len(defs))
	}
	return nil
}

func sortByEmbedding(defs []*schema.StructDef) ([]*schema.StructDef, error) {
	order, err := dag.FromDefs(defs).Order()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*schema.StructDef, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	out := make([]*schema.StructDef, len(order))
	for i, name := range order {
		out[i] = byName[name]
	}
	return out, nil
}
