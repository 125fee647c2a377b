package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/structkit/internal/catalog"
	"github.com/leapstack-labs/structkit/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the header, structs and blocks of a container file",
		Long: `Decode a container file and summarize it: magic, version, the structs
declared by its embedded schema and the blocks it carries.

Structs marked known have a class in the configured schemas; the rest are
read as generic records. Files ending in .b64 are Base64 unwrapped first.`,
		Example: `  # Inspect a file
  structctl inspect scene.bin

  # Inspect as JSON
  structctl inspect scene.bin -o json

  # Re-inspect whenever the file changes
  structctl inspect scene.bin --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-inspect the file when it changes")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, watch bool) error {
	cmdCtx := NewCommandContext(cmd)

	inspect := func() error {
		reg, err := cmdCtx.Registry()
		if err != nil {
			return err
		}
		f, size, err := cmdCtx.readContainer(reg, path)
		if err != nil {
			return err
		}
		return renderInspect(cmdCtx.Renderer, catalog.NewFileEntry(path, size, f))
	}

	if err := inspect(); err != nil {
		if !watch {
			return err
		}
		cmdCtx.Renderer.Error(err.Error())
	}
	if !watch {
		return nil
	}
	return watchFile(cmd.Context(), path, cmdCtx.Logger, func() error {
		cmdCtx.Renderer.Println()
		return inspect()
	})
}

// inspectOutput is the JSON shape of inspect.
type inspectOutput struct {
	Path    string          `json:"path"`
	Magic   string          `json:"magic"`
	Version string          `json:"version"`
	Size    int64           `json:"size"`
	Structs []inspectStruct `json:"structs"`
	Blocks  []inspectBlock  `json:"blocks"`
}

type inspectStruct struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Known bool   `json:"known"`
}

type inspectBlock struct {
	Seq      int    `json:"seq"`
	Type     string `json:"type"`
	Selector int32  `json:"selector"`
	Struct   string `json:"struct,omitempty"`
	Length   int    `json:"length"`
}

func renderInspect(r *output.Renderer, e *catalog.FileEntry) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := inspectOutput{
			Path:    e.Path,
			Magic:   e.Magic,
			Version: e.Version,
			Size:    e.Size,
			Structs: []inspectStruct{},
			Blocks:  []inspectBlock{},
		}
		for _, s := range e.Structs {
			out.Structs = append(out.Structs, inspectStruct(s))
		}
		for _, b := range e.Blocks {
			out.Blocks = append(out.Blocks, inspectBlock(b))
		}
		return r.JSON(out)
	}

	r.Header(1, e.Path)
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Magic", e.Magic))
		r.Println(output.FormatKeyValue("Version", e.Version))
		r.Println(output.FormatKeyValue("Size", fmt.Sprintf("%d bytes", e.Size)))
		r.Println()
	} else {
		styles := r.Styles()
		r.Printf("  %s %s\n", styles.Muted.Render("magic  "), e.Magic)
		r.Printf("  %s %s\n", styles.Muted.Render("version"), e.Version)
		r.Printf("  %s %d bytes\n", styles.Muted.Render("size   "), e.Size)
		r.Println()
	}

	r.Header(2, fmt.Sprintf("Structs (%d)", len(e.Structs)))
	structRows := make([][]any, 0, len(e.Structs))
	for _, s := range e.Structs {
		structRows = append(structRows, []any{s.ID, s.Name, yesNo(s.Known)})
	}
	r.Table([]string{"ID", "Name", "Known"}, structRows)
	r.Println()

	r.Header(2, fmt.Sprintf("Blocks (%d)", len(e.Blocks)))
	blockRows := make([][]any, 0, len(e.Blocks))
	for _, b := range e.Blocks {
		payload := b.Struct
		if payload == "" {
			payload = "raw"
		}
		blockRows = append(blockRows, []any{b.Seq, b.Type, payload, b.Length})
	}
	r.Table([]string{"Seq", "Type", "Payload", "Bytes"}, blockRows)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// watchFile calls fn each time path is written or recreated, until ctx is
// done. Errors from fn are logged and watching continues.
func watchFile(ctx context.Context, path string, logger *slog.Logger, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Editors often replace files instead of writing them, so watch the
	// directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	logger.Debug("watching file", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := fn(); err != nil {
				logger.Warn("inspect failed", "path", path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
