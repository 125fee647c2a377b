package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/leapstack-labs/structkit/internal/catalog"
	"github.com/leapstack-labs/structkit/internal/cli/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewIndexCommand creates the index command.
func NewIndexCommand() *cobra.Command {
	var (
		list      bool
		blockType string
		remove    bool
	)

	cmd := &cobra.Command{
		Use:   "index [file]...",
		Short: "Record container files in the catalog",
		Long: `Decode container files and record their header, structs and blocks in
the SQLite catalog (catalog_path, default .structkit/catalog.db).

Files are decoded in parallel. Indexing a path again replaces its entry.`,
		Example: `  # Index files
  structctl index data/*.bin

  # List indexed files
  structctl index --list

  # List indexed files carrying DATA blocks
  structctl index --list --type DATA

  # Drop files from the catalog
  structctl index --remove old.bin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case list:
				return runIndexList(cmd, blockType)
			case remove:
				return runIndexRemove(cmd, args)
			}
			if len(args) == 0 {
				return fmt.Errorf("no files given")
			}
			return runIndex(cmd, args)
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List indexed files")
	cmd.Flags().StringVarP(&blockType, "type", "t", "", "With --list, only files carrying this block type")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the given files from the catalog")
	cmd.MarkFlagsMutuallyExclusive("list", "remove")

	return cmd
}

func openCatalog(ctx context.Context, cmdCtx *CommandContext) (*catalog.Store, error) {
	path := cmdCtx.Cfg.CatalogPath
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create catalog directory: %w", err)
			}
		}
	}
	return catalog.Open(ctx, path, cmdCtx.Logger)
}

func runIndex(cmd *cobra.Command, paths []string) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	reg, err := cmdCtx.Registry()
	if err != nil {
		return err
	}

	entries := make([]*catalog.FileEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			f, size, err := cmdCtx.readContainer(reg, path)
			if err != nil {
				return err
			}
			entries[i] = catalog.NewFileEntry(abs, size, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	store, err := openCatalog(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, e := range entries {
		if err := store.RecordFile(ctx, e); err != nil {
			return err
		}
		cmdCtx.Renderer.StatusLine(e.Path, "success", fmt.Sprintf("%d blocks", len(e.Blocks)))
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Indexed %d files", len(entries)))
	return nil
}

func runIndexList(cmd *cobra.Command, blockType string) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	store, err := openCatalog(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	files, err := store.ListFiles(ctx)
	if err != nil {
		return err
	}
	if blockType != "" {
		paths, err := store.FilesWithBlockType(ctx, blockType)
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(paths))
		for _, p := range paths {
			keep[p] = true
		}
		files = slices.DeleteFunc(files, func(f *catalog.FileEntry) bool { return !keep[f.Path] })
	}

	if r.EffectiveMode() == output.ModeJSON {
		type fileJSON struct {
			Path      string `json:"path"`
			Magic     string `json:"magic"`
			Version   string `json:"version"`
			Size      int64  `json:"size"`
			IndexedAt string `json:"indexed_at"`
		}
		out := make([]fileJSON, 0, len(files))
		for _, f := range files {
			out = append(out, fileJSON{f.Path, f.Magic, f.Version, f.Size, f.IndexedAt.Format(time.RFC3339)})
		}
		return r.JSON(out)
	}

	if len(files) == 0 {
		r.Muted("No indexed files")
		return nil
	}
	r.Header(1, fmt.Sprintf("Indexed files (%d)", len(files)))
	rows := make([][]any, 0, len(files))
	for _, f := range files {
		rows = append(rows, []any{f.Path, f.Magic, f.Version, f.Size, f.IndexedAt.Local().Format(time.DateTime)})
	}
	r.Table([]string{"Path", "Magic", "Version", "Bytes", "Indexed"}, rows)
	return nil
}

func runIndexRemove(cmd *cobra.Command, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files given")
	}
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()

	store, err := openCatalog(ctx, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if err := store.RemoveFile(ctx, abs); err != nil {
			return err
		}
		cmdCtx.Renderer.StatusLine(abs, "success", "removed")
	}
	return nil
}
