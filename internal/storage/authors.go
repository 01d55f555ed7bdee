package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// InsertAuthor writes a new canonical author row.
func InsertAuthor(ctx context.Context, ex Execer, a *Author) error {
	_, err := builder.Insert("authors").
		Columns("id", "name", "created_at", "updated_at").
		Values(a.ID, a.Name, formatTime(a.CreatedAt), formatTime(a.UpdatedAt)).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert author: %w", err)
	}
	return nil
}

func scanAuthor(row *sql.Row) (*Author, error) {
	var a Author
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.Name, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan author: %w", err)
	}
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAuthorByID fetches one author by id.
func GetAuthorByID(ctx context.Context, q Queryer, id string) (*Author, error) {
	row := builder.Select("id", "name", "created_at", "updated_at").
		From("authors").Where(sq.Eq{"id": id}).RunWith(q).QueryRowContext(ctx)
	return scanAuthor(row)
}

// GetAuthorByName fetches one author by its exact canonical name.
func GetAuthorByName(ctx context.Context, q Queryer, name string) (*Author, error) {
	row := builder.Select("id", "name", "created_at", "updated_at").
		From("authors").Where(sq.Eq{"name": name}).RunWith(q).QueryRowContext(ctx)
	return scanAuthor(row)
}

// ListAuthorAliases returns every alias_id mapped onto canonicalID, most
// recently merged first.
func ListAuthorAliases(ctx context.Context, q Queryer, canonicalID string) ([]string, error) {
	rows, err := builder.Select("alias_id").From("author_aliases").
		Where(sq.Eq{"canonical_id": canonicalID}).OrderBy("merged_at DESC").
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list author aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alias id: %w", err)
		}
		aliases = append(aliases, id)
	}
	return aliases, rows.Err()
}

// ListAllAuthors returns every canonical author ordered by name, for
// duplicate-detection sweeps.
func ListAllAuthors(ctx context.Context, q Queryer) ([]Author, error) {
	rows, err := builder.Select("id", "name", "created_at", "updated_at").
		From("authors").OrderBy("name").RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// DeleteAuthor hard-deletes an author row. Used only by merge_authors, which
// deletes the source side of a merge after reassigning its file_authors rows
// and author_aliases mappings.
func DeleteAuthor(ctx context.Context, ex Execer, id string) error {
	_, err := builder.Delete("authors").Where(sq.Eq{"id": id}).RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete author %s: %w", id, err)
	}
	return nil
}

// GetAuthorAliasCanonical returns the canonical_id aliasID currently
// resolves to, or ErrNotFound if aliasID has no mapping.
func GetAuthorAliasCanonical(ctx context.Context, q Queryer, aliasID string) (string, error) {
	row := builder.Select("canonical_id").From("author_aliases").Where(sq.Eq{"alias_id": aliasID}).
		RunWith(q).QueryRowContext(ctx)
	var canonicalID string
	if err := row.Scan(&canonicalID); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get author alias canonical for %s: %w", aliasID, err)
	}
	return canonicalID, nil
}

// InsertAuthorAlias records (or reconfirms) that alias_id now resolves to
// canonical_id.
func InsertAuthorAlias(ctx context.Context, ex Execer, aliasID, canonicalID, mergedAt string, note *string) error {
	_, err := builder.Insert("author_aliases").
		Columns("alias_id", "canonical_id", "merged_at", "note").
		Values(aliasID, canonicalID, mergedAt, note).
		Suffix("ON CONFLICT(alias_id) DO UPDATE SET canonical_id = excluded.canonical_id, merged_at = excluded.merged_at, note = excluded.note").
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert author alias: %w", err)
	}
	return nil
}

// ReassignAuthorAliases repoints every alias currently resolving to
// fromCanonicalID so it resolves to toCanonicalID instead. Used by
// merge_authors step 2, so aliases of a previously-merged author keep
// resolving correctly after a further merge.
func ReassignAuthorAliases(ctx context.Context, ex Execer, fromCanonicalID, toCanonicalID string) error {
	_, err := builder.Update("author_aliases").
		Set("canonical_id", toCanonicalID).
		Where(sq.Eq{"canonical_id": fromCanonicalID}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("reassign author aliases: %w", err)
	}
	return nil
}

// ReassignFileAuthors moves every file_authors row from one author to
// another, ignoring rows that would collide with an existing (file_id,
// author_id) pair already present for the target author.
func ReassignFileAuthors(ctx context.Context, ex Execer, fromAuthorID, toAuthorID string) error {
	const stmt = `
		INSERT OR IGNORE INTO file_authors (file_id, author_id, position)
		SELECT file_id, ?, position FROM file_authors WHERE author_id = ?
	`
	if _, err := ex.ExecContext(ctx, stmt, toAuthorID, fromAuthorID); err != nil {
		return fmt.Errorf("reassign file authors: %w", err)
	}
	_, err := builder.Delete("file_authors").Where(sq.Eq{"author_id": fromAuthorID}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("clear source file authors: %w", err)
	}
	return nil
}

// ReplaceFileAuthors deletes every file_authors row for fileID and inserts
// authorIDs in order, recording each one's position.
func ReplaceFileAuthors(ctx context.Context, ex Execer, fileID string, authorIDs []string) error {
	if _, err := builder.Delete("file_authors").Where(sq.Eq{"file_id": fileID}).
		RunWith(ex).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear file authors: %w", err)
	}
	for i, authorID := range authorIDs {
		_, err := builder.Insert("file_authors").
			Columns("file_id", "author_id", "position").
			Values(fileID, authorID, i).
			RunWith(ex).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert file author: %w", err)
		}
	}
	return nil
}

// ListAuthorsForFile returns a file's authors in stored position order.
func ListAuthorsForFile(ctx context.Context, q Queryer, fileID string) ([]Author, error) {
	rows, err := builder.Select("a.id", "a.name", "a.created_at", "a.updated_at").
		From("authors a").
		Join("file_authors fa ON fa.author_id = a.id").
		Where(sq.Eq{"fa.file_id": fileID}).
		OrderBy("fa.position").
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}
