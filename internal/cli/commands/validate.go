package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/structkit/internal/cli/output"
	"github.com/leapstack-labs/structkit/internal/dag"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
	"github.com/leapstack-labs/structkit/pkg/schema"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when any schema file is invalid.
var ErrValidationFailed = errors.New("schema validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-file]...",
		Short: "Check schema files for syntax and reference errors",
		Long: `Parse schema files and register their structs together, reporting
grammar errors with the offending line, struct references that do not
resolve and structs that embed each other by value, which can never be
written. Files are checked as one set, so structs may refer to structs
declared in other files.

With no arguments the configured schemas are checked.`,
		Example: `  # Validate the configured schemas
  structctl validate

  # Validate specific files
  structctl validate shapes.struct scene.struct`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
	return cmd
}

// validateResult is the JSON shape of one checked file.
type validateResult struct {
	Path    string   `json:"path"`
	Structs []string `json:"structs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, paths []string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	if len(paths) == 0 {
		paths = cmdCtx.Cfg.Schemas
	}
	if len(paths) == 0 {
		return errors.New("no schema files given and none configured")
	}

	opts, err := cmdCtx.Cfg.Codec.RegistryOptions(cmdCtx.Logger)
	if err != nil {
		return err
	}
	reg := nstruct.New(opts...)

	results := make([]validateResult, 0, len(paths))
	failed := false
	for _, path := range paths {
		res := validateResult{Path: path}
		defs, err := registerSchemaFile(reg, path)
		if err != nil {
			res.Error = err.Error()
			failed = true
			var pe *schema.ParseError
			if errors.As(err, &pe) && r.EffectiveMode() != output.ModeJSON {
				r.StatusLine(path, "error", pe.Error())
				r.Println(pe.Context)
			} else if r.EffectiveMode() != output.ModeJSON {
				r.StatusLine(path, "error", err.Error())
			}
			results = append(results, res)
			continue
		}
		for _, def := range defs {
			res.Structs = append(res.Structs, def.Name)
		}
		if r.EffectiveMode() != output.ModeJSON {
			r.StatusLine(path, "success", fmt.Sprintf("%d structs", len(defs)))
		}
		results = append(results, res)
	}

	refErr := reg.Validate()
	if path := dag.FromDefs(reg.Structs()).Cycle(); path != nil {
		refErr = errors.Join(refErr, &dag.CycleError{Path: path})
	}
	if r.EffectiveMode() == output.ModeJSON {
		out := map[string]any{"files": results, "valid": !failed && refErr == nil}
		if refErr != nil {
			out["errors"] = errorLines(refErr)
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	} else if refErr != nil {
		r.Println()
		r.Header(2, "Schema errors")
		for _, line := range errorLines(refErr) {
			r.StatusLine(line, "error", "")
		}
	}

	if failed || refErr != nil {
		return ErrValidationFailed
	}
	if r.EffectiveMode() != output.ModeJSON {
		r.Success(fmt.Sprintf("%d structs valid", len(reg.Names())))
	}
	return nil
}

// errorLines flattens a joined error into its messages.
func errorLines(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, errorLines(e)...)
	}
	return out
}
