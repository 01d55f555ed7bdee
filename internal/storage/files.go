package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when a lookup by id or hash matches no row.
var ErrNotFound = errors.New("storage: not found")

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// InsertFile writes a new files row. f.CreatedAt/UpdatedAt must already be
// set by the caller.
func InsertFile(ctx context.Context, ex Execer, f *File) error {
	_, err := builder.Insert("files").
		Columns(
			"id", "title", "original_filename", "initial_hash", "current_hash",
			"relative_path", "original_path", "size", "year", "publisher", "source",
			"category1", "category2", "category3", "summary", "full_text",
			"created_at", "updated_at", "last_accessed_at", "is_deleted", "deleted_at",
		).
		Values(
			f.ID, f.Title, f.OriginalFilename, f.InitialHash, f.CurrentHash,
			f.RelativePath, f.OriginalPath, f.Size, f.Year, f.Publisher, f.Source,
			f.Category1, f.Category2, f.Category3, f.Summary, f.FullText,
			formatTime(f.CreatedAt), formatTime(f.UpdatedAt), formatOptionalTime(f.LastAccessedAt),
			f.IsDeleted, formatOptionalTime(f.DeletedAt),
		).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

var fileColumns = []string{
	"id", "title", "original_filename", "initial_hash", "current_hash",
	"relative_path", "original_path", "size", "year", "publisher", "source",
	"category1", "category2", "category3", "summary", "full_text",
	"created_at", "updated_at", "last_accessed_at", "is_deleted", "deleted_at",
}

func scanFile(row *sql.Row) (*File, error) {
	var f File
	var createdAt, updatedAt string
	var lastAccessedAt, deletedAt sql.NullString

	err := row.Scan(
		&f.ID, &f.Title, &f.OriginalFilename, &f.InitialHash, &f.CurrentHash,
		&f.RelativePath, &f.OriginalPath, &f.Size, &f.Year, &f.Publisher, &f.Source,
		&f.Category1, &f.Category2, &f.Category3, &f.Summary, &f.FullText,
		&createdAt, &updatedAt, &lastAccessedAt, &f.IsDeleted, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastAccessedAt.Valid {
		t, err := parseTime(lastAccessedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_accessed_at: %w", err)
		}
		f.LastAccessedAt = &t
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse deleted_at: %w", err)
		}
		f.DeletedAt = &t
	}
	return &f, nil
}

// GetFileByID fetches a file by its id, including soft-deleted rows.
func GetFileByID(ctx context.Context, q Queryer, id string) (*File, error) {
	row := builder.Select(fileColumns...).From("files").Where(sq.Eq{"id": id}).
		RunWith(q).QueryRowContext(ctx)
	f, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if err := attachAuthorsAndTags(ctx, q, f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFileByHash looks a file up by either its initial or current content
// hash, the dedupe check every import performs before copying a new file
// into the library.
func GetFileByHash(ctx context.Context, q Queryer, hash string) (*File, error) {
	row := builder.Select(fileColumns...).From("files").
		Where(sq.Or{sq.Eq{"initial_hash": hash}, sq.Eq{"current_hash": hash}}).
		RunWith(q).QueryRowContext(ctx)
	f, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if err := attachAuthorsAndTags(ctx, q, f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFileByRelativePath looks a file up by its path under the storage root.
func GetFileByRelativePath(ctx context.Context, q Queryer, relativePath string) (*File, error) {
	row := builder.Select(fileColumns...).From("files").Where(sq.Eq{"relative_path": relativePath}).
		RunWith(q).QueryRowContext(ctx)
	f, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if err := attachAuthorsAndTags(ctx, q, f); err != nil {
		return nil, err
	}
	return f, nil
}

func attachAuthorsAndTags(ctx context.Context, q Queryer, f *File) error {
	authors, err := ListAuthorsForFile(ctx, q, f.ID)
	if err != nil {
		return err
	}
	for _, a := range authors {
		f.Authors = append(f.Authors, a.Name)
	}

	tags, err := ListTagsForFile(ctx, q, f.ID)
	if err != nil {
		return err
	}
	for _, t := range tags {
		f.Tags = append(f.Tags, t.Name)
	}

	info, err := GetFileMetadata(ctx, q, f.ID)
	if err != nil {
		return err
	}
	f.AdditionalInfo = info
	return nil
}

// UpdateFileFields applies a sparse set of column updates to one files row.
// Callers build fields from only the patch keys actually supplied; updated_at
// is not added automatically, so callers must include it themselves.
func UpdateFileFields(ctx context.Context, ex Execer, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := builder.Update("files").SetMap(fields).Where(sq.Eq{"id": id}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("update file %s: %w", id, err)
	}
	return nil
}

// SoftDeleteFile marks a file deleted without removing its row, preserving
// history and dedupe-by-hash semantics for a file that reappears later.
func SoftDeleteFile(ctx context.Context, ex Execer, id, deletedAt string) error {
	_, err := builder.Update("files").
		Set("is_deleted", true).
		Set("deleted_at", deletedAt).
		Where(sq.Eq{"id": id}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("soft delete file %s: %w", id, err)
	}
	return nil
}

// SyncFileFTS recomputes the authors and tags FTS5 columns for one file from
// the current file_authors/file_tags join data. The schema's update trigger
// only fires on title/summary/full_text, so every caller that changes a
// file's author or tag set must call this explicitly afterward.
func SyncFileFTS(ctx context.Context, ex Execer, fileID string) error {
	const stmt = `
		UPDATE files_fts SET
			authors = COALESCE((
				SELECT group_concat(a.name, ' ') FROM authors a
				JOIN file_authors fa ON fa.author_id = a.id
				WHERE fa.file_id = ?
			), ''),
			tags = COALESCE((
				SELECT group_concat(t.name, ' ') FROM tags t
				JOIN file_tags ft ON ft.tag_id = t.id
				WHERE ft.file_id = ?
			), '')
		WHERE rowid = (SELECT rowid FROM files WHERE id = ?)
	`
	if _, err := ex.ExecContext(ctx, stmt, fileID, fileID, fileID); err != nil {
		return fmt.Errorf("sync fts for file %s: %w", fileID, err)
	}
	return nil
}

// RebuildFTSIndex wipes and regenerates every files_fts row from the files,
// file_authors, and file_tags tables. Safe to call repeatedly.
func RebuildFTSIndex(ctx context.Context, ex Execer) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM files_fts`); err != nil {
		return fmt.Errorf("clear fts index: %w", err)
	}
	const stmt = `
		INSERT INTO files_fts(rowid, title, authors, summary, tags, full_text)
		SELECT f.rowid, f.title,
			COALESCE((SELECT group_concat(a.name, ' ') FROM authors a
				JOIN file_authors fa ON fa.author_id = a.id WHERE fa.file_id = f.id), ''),
			f.summary,
			COALESCE((SELECT group_concat(t.name, ' ') FROM tags t
				JOIN file_tags ft ON ft.tag_id = t.id WHERE ft.file_id = f.id), ''),
			f.full_text
		FROM files f
	`
	if _, err := ex.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("rebuild fts index: %w", err)
	}
	return nil
}
