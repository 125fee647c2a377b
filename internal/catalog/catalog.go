// Package catalog keeps an index of inspected container files in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/structkit/pkg/container"
)

// ErrNotFound is returned when no file is recorded under a path.
var ErrNotFound = errors.New("catalog: file not found")

// FileEntry describes one indexed file.
type FileEntry struct {
	ID        string
	Path      string
	Magic     string
	Version   string
	Size      int64
	IndexedAt time.Time
	Structs   []StructEntry
	Blocks    []BlockEntry
}

// StructEntry is a struct declared in a file's embedded schema.
type StructEntry struct {
	ID    int32
	Name  string
	Known bool // the reading registry had a class for it
}

// BlockEntry is one block of a file.
type BlockEntry struct {
	Seq      int
	Type     string
	Selector int32
	Struct   string // empty for raw blocks
	Length   int
}

// NewFileEntry summarizes a decoded file.
func NewFileEntry(path string, size int64, f *container.File) *FileEntry {
	e := &FileEntry{
		Path:    path,
		Magic:   f.Header.Magic,
		Version: f.Header.Version.String(),
		Size:    size,
	}
	for _, def := range f.Registry.Structs() {
		cls, _ := f.Registry.Class(def.Name)
		e.Structs = append(e.Structs, StructEntry{ID: def.ID, Name: def.Name, Known: cls != nil && !cls.Stub()})
	}
	for i, b := range f.Blocks {
		be := BlockEntry{Seq: i, Type: b.Type}
		switch p := b.Payload.(type) {
		case container.RawPayload:
			be.Selector = container.RawSelector
			be.Length = len(p.Data)
		case container.StructPayload:
			be.Selector = p.ID
			be.Length = len(p.Bytes)
			if def, ok := f.Registry.StructByID(p.ID); ok {
				be.Struct = def.Name
			}
		}
		e.Blocks = append(e.Blocks, be)
	}
	return e
}

// Store is a SQLite backed catalog.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens the catalog at path and applies pending migrations.
// Use ":memory:" for an in-memory catalog.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("catalog opened", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordFile stores e, replacing any earlier entry for the same path.
// ID and IndexedAt are assigned.
func (s *Store) RecordFile(ctx context.Context, e *FileEntry) error {
	e.ID = uuid.New().String()
	e.IndexedAt = time.Now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, e.Path); err != nil {
		return fmt.Errorf("failed to replace file %s: %w", e.Path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (id, path, magic, version, size, indexed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Path, e.Magic, e.Version, e.Size, e.IndexedAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to insert file %s: %w", e.Path, err)
	}
	for _, st := range e.Structs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_structs (file_id, struct_id, name, known) VALUES (?, ?, ?, ?)`,
			e.ID, st.ID, st.Name, st.Known,
		); err != nil {
			return fmt.Errorf("failed to insert struct %s: %w", st.Name, err)
		}
	}
	for _, b := range e.Blocks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_blocks (file_id, seq, block_type, selector, struct_name, length) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, b.Seq, b.Type, b.Selector, b.Struct, b.Length,
		); err != nil {
			return fmt.Errorf("failed to insert block %d: %w", b.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file %s: %w", e.Path, err)
	}
	s.logger.Debug("recorded file", "path", e.Path, "blocks", len(e.Blocks))
	return nil
}

// GetFile returns the entry for path with its structs and blocks.
func (s *Store) GetFile(ctx context.Context, path string) (*FileEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, magic, version, size, indexed_at FROM files WHERE path = ?`, path)
	e, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	if e.Structs, err = s.structs(ctx, e.ID); err != nil {
		return nil, err
	}
	if e.Blocks, err = s.blocks(ctx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// ListFiles returns every entry ordered by path. Structs and blocks are
// not loaded.
func (s *Store) ListFiles(ctx context.Context) ([]*FileEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, magic, version, size, indexed_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var out []*FileEntry
	for rows.Next() {
		e, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FilesWithBlockType returns the paths of files holding at least one block
// of type typ.
func (s *Store) FilesWithBlockType(ctx context.Context, typ string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT f.path FROM files f
		JOIN file_blocks b ON b.file_id = f.id
		WHERE b.block_type = ?
		ORDER BY f.path`, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to query block type: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveFile deletes the entry for path.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*FileEntry, error) {
	e := &FileEntry{}
	var indexedAt string
	if err := row.Scan(&e.ID, &e.Path, &e.Magic, &e.Version, &e.Size, &indexedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, indexedAt)
	if err != nil {
		return nil, fmt.Errorf("bad indexed_at %q: %w", indexedAt, err)
	}
	e.IndexedAt = t
	return e, nil
}

func (s *Store) structs(ctx context.Context, fileID string) ([]StructEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT struct_id, name, known FROM file_structs WHERE file_id = ? ORDER BY struct_id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get structs: %w", err)
	}
	defer rows.Close()

	var out []StructEntry
	for rows.Next() {
		var st StructEntry
		if err := rows.Scan(&st.ID, &st.Name, &st.Known); err != nil {
			return nil, fmt.Errorf("failed to scan struct: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) blocks(ctx context.Context, fileID string) ([]BlockEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, block_type, selector, struct_name, length FROM file_blocks WHERE file_id = ? ORDER BY seq`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockEntry
	for rows.Next() {
		var b BlockEntry
		if err := rows.Scan(&b.Seq, &b.Type, &b.Selector, &b.Struct, &b.Length); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
