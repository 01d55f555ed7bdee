// Package validate reconciles on-disk state with database state: re-hashing
// files to detect drift, repairing a known-changed hash, rebuilding the FTS
// index from scratch, and rehousing files after a path template change.
package validate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/hashio"
	"github.com/nerdneilsfield/tagbox-go/internal/history"
	"github.com/nerdneilsfield/tagbox-go/internal/pathgen"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// Status names the outcome of validating one on-disk file against its
// database row.
type Status string

const (
	StatusValid         Status = "valid"
	StatusNotInDatabase Status = "not_in_database"
	StatusSizeMismatch  Status = "size_mismatch"
	StatusHashMismatch  Status = "hash_mismatch"
	StatusFileNotFound  Status = "file_not_found"
)

// Result is one file's validation outcome. ExpectedSize/ActualSize are only
// populated for StatusSizeMismatch; ExpectedHash/ActualHash only for
// StatusHashMismatch.
type Result struct {
	FileID       string
	Path         string
	Status       Status
	ExpectedSize int64
	ActualSize   int64
	ExpectedHash string
	ActualHash   string
}

// Validator runs validation and repair operations against one library.
type Validator struct {
	db       *storage.DB
	cfg      *config.Config
	gen      *pathgen.Generator
	history  *history.Manager
	hashAlgo hashio.Algorithm
}

// New builds a Validator over an opened library and its configuration.
func New(db *storage.DB, cfg *config.Config) *Validator {
	return &Validator{
		db:       db,
		cfg:      cfg,
		gen:      pathgen.New(cfg.Import.Paths.RenameTemplate, cfg.Import.Paths.ClassifyTemplate),
		history:  history.New(db),
		hashAlgo: hashio.Algorithm(cfg.Hash.Algorithm),
	}
}

// ValidateFilesInPath walks path (recursively, or just its direct entries)
// and validates every regular file found.
func (v *Validator) ValidateFilesInPath(ctx context.Context, path string, recursive bool) ([]Result, error) {
	var paths []string

	if recursive {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", path, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
	}

	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		r, err := v.ValidateSingleFile(ctx, p)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}

// ValidateSingleFile looks path up by its path relative to the storage
// root, compares size (cheap) then hash (only if size matches) against the
// stored file, and reports the outcome.
func (v *Validator) ValidateSingleFile(ctx context.Context, path string) (*Result, error) {
	relativePath := v.relativeToStorageRoot(path)

	f, err := storage.GetFileByRelativePath(ctx, v.db.Reader, relativePath)
	if err == storage.ErrNotFound {
		return &Result{Path: path, Status: StatusNotInDatabase}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &Result{FileID: f.ID, Path: path, Status: StatusFileNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	if info.Size() != f.Size {
		return &Result{
			FileID: f.ID, Path: path, Status: StatusSizeMismatch,
			ExpectedSize: f.Size, ActualSize: info.Size(),
		}, nil
	}

	digest, _, err := hashio.HashFile(path, v.hashAlgo)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	if digest != f.CurrentHash {
		return &Result{
			FileID: f.ID, Path: path, Status: StatusHashMismatch,
			ExpectedHash: f.CurrentHash, ActualHash: digest,
		}, nil
	}

	return &Result{FileID: f.ID, Path: path, Status: StatusValid}, nil
}

// relativeToStorageRoot mirrors the original validator's lookup key choice:
// an absolute path under the storage root is looked up by its relative_path
// column; a relative path is looked up as given, and so is an absolute path
// outside the root, which matches no relative_path the importer generates.
func (v *Validator) relativeToStorageRoot(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	root := v.cfg.Import.Paths.StorageDir
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// UpdateFileHash recomputes a file's on-disk hash and size, writes both to
// current_hash/size in one transaction, and appends a hash_update history
// entry recording the old and new values. initial_hash is left untouched.
func (v *Validator) UpdateFileHash(ctx context.Context, fileID, reason string) (*storage.File, error) {
	current, err := storage.GetFileByID(ctx, v.db.Reader, fileID)
	if err != nil {
		return nil, fmt.Errorf("update hash for %s: %w", fileID, err)
	}

	abs := filepath.Join(v.cfg.Import.Paths.StorageDir, current.RelativePath)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("update hash for %s: %w", fileID, err)
	}
	newSize := info.Size()

	newHash, _, err := hashio.HashFile(abs, v.hashAlgo)
	if err != nil {
		return nil, fmt.Errorf("update hash for %s: %w", fileID, err)
	}

	oldHash := current.CurrentHash
	oldSize := current.Size

	err = storage.WithTx(ctx, v.db, func(tx *sql.Tx) error {
		if err := storage.UpdateFileFields(ctx, tx, fileID, map[string]interface{}{
			"current_hash": newHash,
			"size":         newSize,
			"updated_at":   time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
		return storage.InsertHistoryEntry(ctx, tx, &storage.HistoryEntry{
			ID: uuid.NewString(), FileID: fileID, Operation: string(history.OperationHashUpdate),
			OldHash: &oldHash, NewHash: &newHash, OldSize: &oldSize, NewSize: &newSize,
			ChangedAt: time.Now(), Reason: &reason,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update hash for %s: %w", fileID, err)
	}

	return storage.GetFileByID(ctx, v.db.Reader, fileID)
}

// RebuildFTSIndex wipes and regenerates every FTS row from current file,
// author, and tag data.
func (v *Validator) RebuildFTSIndex(ctx context.Context) error {
	return storage.WithTx(ctx, v.db, func(tx *sql.Tx) error {
		return storage.RebuildFTSIndex(ctx, tx)
	})
}

// PathRebuildPlan is one file's current path vs. the path its current
// metadata would generate today.
type PathRebuildPlan struct {
	FileID    string
	OldPath   string
	NewPath   string
	NeedsMove bool
	Applied   bool
	Err       error
}

// RebuildPaths recomputes every file's target path from its current
// metadata. Recomputation runs with bounded parallelism; when apply is
// true, each actual move is serialized through the single DB writer. A
// dry run (apply=false) makes no filesystem or database changes.
func (v *Validator) RebuildPaths(ctx context.Context, apply bool, workers int) ([]PathRebuildPlan, error) {
	if workers <= 0 {
		workers = 4
	}

	ids, err := v.listActiveFileIDs(ctx)
	if err != nil {
		return nil, err
	}

	plans := make([]PathRebuildPlan, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			plans[i] = v.planOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	if !apply {
		return plans, nil
	}

	for i := range plans {
		if !plans[i].NeedsMove || plans[i].Err != nil {
			continue
		}
		if err := v.applyMove(ctx, &plans[i]); err != nil {
			plans[i].Err = err
		}
	}
	return plans, nil
}

func (v *Validator) listActiveFileIDs(ctx context.Context) ([]string, error) {
	rows, err := v.db.Reader.QueryContext(ctx, `SELECT id FROM files WHERE is_deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (v *Validator) planOne(ctx context.Context, fileID string) PathRebuildPlan {
	f, err := storage.GetFileByID(ctx, v.db.Reader, fileID)
	if err != nil {
		return PathRebuildPlan{FileID: fileID, Err: err}
	}

	newPath := v.gen.GeneratePath(pathgen.Metadata{
		Title:     f.Title,
		Authors:   f.Authors,
		Year:      f.Year,
		Category1: f.Category1,
		Category2: derefStr(f.Category2),
		Category3: derefStr(f.Category3),
		Extension: filepath.Ext(f.RelativePath),
	})

	return PathRebuildPlan{
		FileID:    fileID,
		OldPath:   f.RelativePath,
		NewPath:   newPath,
		NeedsMove: newPath != f.RelativePath,
	}
}

// applyMove copies the file to its new location, updates relative_path in
// the same transaction as the copy, and only removes the old file and
// records history after the transaction commits; a copy failure rolls the
// whole step back and leaves the old file in place.
func (v *Validator) applyMove(ctx context.Context, plan *PathRebuildPlan) error {
	oldAbs := filepath.Join(v.cfg.Import.Paths.StorageDir, plan.OldPath)
	newAbs := filepath.Join(v.cfg.Import.Paths.StorageDir, plan.NewPath)

	err := storage.WithTx(ctx, v.db, func(tx *sql.Tx) error {
		if err := hashio.EnsureDir(filepath.Dir(newAbs)); err != nil {
			return err
		}
		if _, err := hashio.SafeCopyFile(oldAbs, newAbs, v.hashAlgo); err != nil {
			return err
		}
		return storage.UpdateFileFields(ctx, tx, plan.FileID, map[string]interface{}{
			"relative_path": plan.NewPath,
			"updated_at":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return fmt.Errorf("rebuild path for %s: %w", plan.FileID, err)
	}

	if err := os.Remove(oldAbs); err != nil {
		return fmt.Errorf("rebuild path for %s: remove old file: %w", plan.FileID, err)
	}

	oldPath, newPath := plan.OldPath, plan.NewPath
	if _, err := v.history.Record(ctx, history.Entry{
		FileID:    plan.FileID,
		Operation: history.OperationMove,
		OldPath:   &oldPath,
		NewPath:   &newPath,
	}); err != nil {
		return fmt.Errorf("rebuild path for %s: record history: %w", plan.FileID, err)
	}

	plan.Applied = true
	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
