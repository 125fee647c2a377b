package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/structkit/internal/cli/config"
	"github.com/leapstack-labs/structkit/internal/cli/output"
	intconfig "github.com/leapstack-labs/structkit/internal/config"
	"github.com/leapstack-labs/structkit/pkg/container"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
	"github.com/leapstack-labs/structkit/pkg/schema"
	"github.com/spf13/cobra"
)

// Base64Ext marks container files wrapped in Base64.
const Base64Ext = ".b64"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the config, logger and
// renderer the root command stored in the command context. Commands run
// on their own fall back to the current config and a fresh renderer.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	if cfg == nil {
		cfg = getConfig()
	}
	logger := config.GetLogger(ctx)
	r := output.GetRenderer(ctx)
	if r == nil {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Codec:        intconfig.DefaultCodecConfig(),
		LogLevel:     config.DefaultLogLevel,
		OutputFormat: config.DefaultOutput,
		CatalogPath:  config.DefaultCatalogPath,
	}
}

// Registry builds a registry holding every struct of the configured schema
// files, bound to records. Extra options apply after the configured ones.
func (c *CommandContext) Registry(extra ...nstruct.Option) (*nstruct.Registry, error) {
	opts, err := c.Cfg.Codec.RegistryOptions(c.Logger)
	if err != nil {
		return nil, err
	}
	reg := nstruct.New(append(opts, extra...)...)
	for _, path := range c.Cfg.Schemas {
		if _, err := registerSchemaFile(reg, path); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("configured schemas: %w", err)
	}
	return reg, nil
}

// registerSchemaFile registers each struct of a schema file as a record
// class and returns the parsed definitions.
func registerSchemaFile(reg *nstruct.Registry, path string) ([]*schema.StructDef, error) {
	defs, err := parseSchemaFile(path)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		name := def.Name
		cls := &nstruct.Class{
			Schema: schema.FormatStruct(def, false, false),
			New:    func() any { return nstruct.NewRecord(name) },
		}
		if err := reg.Register(cls); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return defs, nil
}

func parseSchemaFile(path string) ([]*schema.StructDef, error) {
	src, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, err
	}
	defs, err := schema.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// readContainer decodes a container file. Files ending in .b64 are
// unwrapped from Base64 first.
func (c *CommandContext) readContainer(reg *nstruct.Registry, path string) (*container.File, int64, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, 0, err
	}
	rd := container.NewReader(reg, c.Cfg.Codec.ContainerOptions()...)
	var f *container.File
	if isBase64Path(path) {
		f, err = rd.ReadBase64(bytes.NewReader(data))
	} else {
		f, err = rd.Decode(data)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, int64(len(data)), nil
}

func isBase64Path(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Base64Ext)
}

// blockStruct names the struct carried by a block, or "" for raw blocks.
func blockStruct(f *container.File, b container.Block) string {
	p, ok := b.Payload.(container.StructPayload)
	if !ok {
		return ""
	}
	if def, ok := f.Registry.StructByID(p.ID); ok {
		return def.Name
	}
	return fmt.Sprintf("#%d", p.ID)
}
