// Package editor applies sparse patches to an existing file's metadata,
// relocates a file on disk when its category changes, and previews a patch
// as a human-readable diff before it is applied.
package editor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/hashio"
	"github.com/nerdneilsfield/tagbox-go/internal/history"
	"github.com/nerdneilsfield/tagbox-go/internal/pathgen"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// ErrInvalidFileID is returned when the target file does not exist.
var ErrInvalidFileID = errors.New("editor: invalid file id")

// Patch is a sparse update: a nil field means "leave unchanged." Authors,
// Tags, and AdditionalInfo are pointers-to-slice/map so an explicit empty
// value (clear everything) is distinguishable from "not present."
type Patch struct {
	Title          *string
	Year           *int
	Publisher      *string
	Source         *string
	Category1      *string
	Category2      *string
	Category3      *string
	Summary        *string
	FullText       *string
	Authors        *[]string
	Tags           *[]string
	AdditionalInfo *map[string]string
}

// Editor owns metadata updates and relocation for existing files.
type Editor struct {
	db         *storage.DB
	gen        *pathgen.Generator
	storageDir string
	hashAlgo   hashio.Algorithm
	history    *history.Manager
}

// New builds an Editor over an opened library and its configuration.
func New(db *storage.DB, cfg *config.Config) *Editor {
	return &Editor{
		db:         db,
		gen:        pathgen.New(cfg.Import.Paths.RenameTemplate, cfg.Import.Paths.ClassifyTemplate),
		storageDir: cfg.Import.Paths.StorageDir,
		hashAlgo:   hashio.Algorithm(cfg.Hash.Algorithm),
		history:    history.New(db),
	}
}

// Update applies patch to fileID's row. Only fields present in patch enter
// the UPDATE statement; updated_at is always bumped. Authors or Tags being
// present triggers a full join-table replace and FTS resync in the same
// transaction.
func (e *Editor) Update(ctx context.Context, fileID string, patch Patch) (*storage.File, error) {
	current, err := storage.GetFileByID(ctx, e.db.Reader, fileID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFileID, fileID)
		}
		return nil, err
	}

	err = storage.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		return e.applyPatch(ctx, tx, current, patch)
	})
	if err != nil {
		return nil, err
	}
	return storage.GetFileByID(ctx, e.db.Reader, fileID)
}

// applyPatch writes patch's present fields within an already-open
// transaction, leaving relocation to the caller.
func (e *Editor) applyPatch(ctx context.Context, tx *sql.Tx, current *storage.File, patch Patch) error {
	fields := fieldMap(patch)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	if err := storage.UpdateFileFields(ctx, tx, current.ID, fields); err != nil {
		return err
	}

	touchedFTS := false
	if patch.Authors != nil {
		ids, err := resolveNames(ctx, tx, *patch.Authors, newAuthor)
		if err != nil {
			return err
		}
		if err := storage.ReplaceFileAuthors(ctx, tx, current.ID, ids); err != nil {
			return err
		}
		touchedFTS = true
	}
	if patch.Tags != nil {
		ids, err := resolveNames(ctx, tx, *patch.Tags, newTag)
		if err != nil {
			return err
		}
		if err := storage.ReplaceFileTags(ctx, tx, current.ID, ids); err != nil {
			return err
		}
		touchedFTS = true
	}
	if patch.AdditionalInfo != nil {
		if err := storage.ReplaceFileMetadata(ctx, tx, current.ID, *patch.AdditionalInfo); err != nil {
			return err
		}
	}
	if touchedFTS {
		return storage.SyncFileFTS(ctx, tx, current.ID)
	}
	return nil
}

func fieldMap(patch Patch) map[string]interface{} {
	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Year != nil {
		fields["year"] = *patch.Year
	}
	if patch.Publisher != nil {
		fields["publisher"] = *patch.Publisher
	}
	if patch.Source != nil {
		fields["source"] = *patch.Source
	}
	if patch.Category1 != nil {
		fields["category1"] = *patch.Category1
	}
	if patch.Category2 != nil {
		fields["category2"] = *patch.Category2
	}
	if patch.Category3 != nil {
		fields["category3"] = *patch.Category3
	}
	if patch.Summary != nil {
		fields["summary"] = *patch.Summary
	}
	if patch.FullText != nil {
		fields["full_text"] = *patch.FullText
	}
	return fields
}

// MoveOptions controls UpdateWithMove's relocation behavior.
type MoveOptions struct {
	// Move physically relocates the file when its generated path changes.
	// Without it, UpdateWithMove behaves exactly like Update even if the
	// category changed.
	Move bool
}

// UpdateWithMove applies patch like Update, and additionally relocates the
// file on disk if Category1/2/3 changed enough to produce a different
// generated path. The physical move happens inside the same transaction as
// the metadata write: if it fails, the transaction (and thus the metadata
// update) rolls back entirely.
func (e *Editor) UpdateWithMove(ctx context.Context, fileID string, patch Patch, opts MoveOptions) (*storage.File, error) {
	current, err := storage.GetFileByID(ctx, e.db.Reader, fileID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFileID, fileID)
		}
		return nil, err
	}

	newRelPath := e.generatePath(current, patch)
	needsMove := opts.Move && newRelPath != current.RelativePath

	var oldAbs, newAbs string
	err = storage.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if err := e.applyPatch(ctx, tx, current, patch); err != nil {
			return err
		}
		if !needsMove {
			return nil
		}

		oldAbs = filepath.Join(e.storageDir, current.RelativePath)
		newAbs = filepath.Join(e.storageDir, newRelPath)
		if err := hashio.EnsureDir(filepath.Dir(newAbs)); err != nil {
			return fmt.Errorf("move file: %w", err)
		}
		if _, err := hashio.SafeCopyFile(oldAbs, newAbs, e.hashAlgo); err != nil {
			return fmt.Errorf("move file: %w", err)
		}

		return storage.UpdateFileFields(ctx, tx, current.ID, map[string]interface{}{
			"relative_path": newRelPath,
		})
	})
	if err != nil {
		return nil, err
	}

	if needsMove {
		if rmErr := os.Remove(oldAbs); rmErr != nil {
			return nil, fmt.Errorf("move file: committed but could not remove original %s: %w", oldAbs, rmErr)
		}
		if _, err := e.history.Record(ctx, history.Entry{
			FileID:    current.ID,
			Operation: history.OperationMove,
			OldPath:   &current.RelativePath,
			NewPath:   &newRelPath,
		}); err != nil {
			return nil, err
		}
	}

	return storage.GetFileByID(ctx, e.db.Reader, fileID)
}

func (e *Editor) generatePath(current *storage.File, patch Patch) string {
	m := pathgen.Metadata{
		Title:     current.Title,
		Authors:   current.Authors,
		Year:      current.Year,
		Category1: current.Category1,
		Extension: filepath.Ext(current.RelativePath),
	}
	if current.Category2 != nil {
		m.Category2 = *current.Category2
	}
	if current.Category3 != nil {
		m.Category3 = *current.Category3
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Year != nil {
		m.Year = patch.Year
	}
	if patch.Category1 != nil {
		m.Category1 = *patch.Category1
	}
	if patch.Category2 != nil {
		m.Category2 = *patch.Category2
	}
	if patch.Category3 != nil {
		m.Category3 = *patch.Category3
	}
	if patch.Authors != nil {
		m.Authors = *patch.Authors
	}
	return e.gen.GeneratePath(m)
}

// ChangeDiff is one field's before/after value in a preview.
type ChangeDiff struct {
	Field    string
	OldValue string
	NewValue string
}

// PreviewChanges compares current against patch and returns every field
// patch would actually change, without writing anything.
func PreviewChanges(current *storage.File, patch Patch) []ChangeDiff {
	var diffs []ChangeDiff
	add := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			diffs = append(diffs, ChangeDiff{Field: field, OldValue: oldValue, NewValue: newValue})
		}
	}

	if patch.Title != nil {
		add("title", current.Title, *patch.Title)
	}
	if patch.Year != nil {
		add("year", intOrEmpty(current.Year), strconv.Itoa(*patch.Year))
	}
	if patch.Publisher != nil {
		add("publisher", strOrEmpty(current.Publisher), *patch.Publisher)
	}
	if patch.Source != nil {
		add("source", strOrEmpty(current.Source), *patch.Source)
	}
	if patch.Category1 != nil {
		add("category1", current.Category1, *patch.Category1)
	}
	if patch.Category2 != nil {
		add("category2", strOrEmpty(current.Category2), *patch.Category2)
	}
	if patch.Category3 != nil {
		add("category3", strOrEmpty(current.Category3), *patch.Category3)
	}
	if patch.Summary != nil {
		add("summary", strOrEmpty(current.Summary), *patch.Summary)
	}
	if patch.FullText != nil {
		add("full_text", strOrEmpty(current.FullText), *patch.FullText)
	}
	if patch.Authors != nil {
		add("authors", joinSorted(current.Authors), joinSorted(*patch.Authors))
	}
	if patch.Tags != nil {
		add("tags", joinSorted(current.Tags), joinSorted(*patch.Tags))
	}
	if patch.AdditionalInfo != nil {
		add("additional_info", mapString(current.AdditionalInfo), mapString(*patch.AdditionalInfo))
	}
	return diffs
}

func intOrEmpty(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinSorted(xs []string) string {
	sorted := append([]string{}, xs...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func mapString(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// nameCreator builds a new storage row for a name that resolveNames found
// no existing match for.
type nameCreator func(ctx context.Context, ex storage.ExecQueryer, name string) (string, error)

func newAuthor(ctx context.Context, ex storage.ExecQueryer, name string) (string, error) {
	existing, err := storage.GetAuthorByName(ctx, ex, name)
	if err == nil {
		return existing.ID, nil
	}
	if err != storage.ErrNotFound {
		return "", err
	}
	now := time.Now()
	a := &storage.Author{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := storage.InsertAuthor(ctx, ex, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func newTag(ctx context.Context, ex storage.ExecQueryer, name string) (string, error) {
	existing, err := storage.GetTagByName(ctx, ex, name)
	if err == nil {
		return existing.ID, nil
	}
	if err != storage.ErrNotFound {
		return "", err
	}
	now := time.Now()
	t := &storage.Tag{ID: uuid.NewString(), Name: name, Path: name, CreatedAt: now, UpdatedAt: now}
	if err := storage.InsertTag(ctx, ex, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func resolveNames(ctx context.Context, ex storage.ExecQueryer, names []string, create nameCreator) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := create(ctx, ex, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
