// Package importer orchestrates ingesting one or many files into a library:
// hashing, dedupe, metadata extraction, path generation, a fsync'd copy into
// the storage root, a transactional multi-table write, and a history record.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerdneilsfield/tagbox-go/internal/authors"
	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/extract"
	"github.com/nerdneilsfield/tagbox-go/internal/hashio"
	"github.com/nerdneilsfield/tagbox-go/internal/history"
	"github.com/nerdneilsfield/tagbox-go/internal/pathgen"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// Options tunes a single Import call.
type Options struct {
	// DeleteOriginal removes the source path after a successful import
	// commit. Never applied on a dedupe short-circuit.
	DeleteOriginal bool
}

// Result is what Import returns for one path.
type Result struct {
	File *storage.File
	// AlreadyExisted is true when the path's content hash matched an
	// existing, non-deleted file and the import short-circuited.
	AlreadyExisted bool
}

// BatchResult pairs one batch input path with its outcome.
type BatchResult struct {
	Path   string
	Result *Result
	Err    error
}

// Importer wires the extraction, path-generation, and storage layers
// together behind the single import(path) operation.
type Importer struct {
	db        *storage.DB
	cfg       *config.Config
	extractor *extract.Extractor
	gen       *pathgen.Generator
	authors   *authors.Manager
	history   *history.Manager
	hashAlgo  hashio.Algorithm
}

// New builds an Importer over an opened library and its configuration.
func New(db *storage.DB, cfg *config.Config) *Importer {
	return &Importer{
		db:        db,
		cfg:       cfg,
		extractor: extract.New(cfg.Import.Metadata),
		gen:       pathgen.New(cfg.Import.Paths.RenameTemplate, cfg.Import.Paths.ClassifyTemplate),
		authors:   authors.New(db),
		history:   history.New(db),
		hashAlgo:  hashio.Algorithm(cfg.Hash.Algorithm),
	}
}

// preparedImport is everything Import can compute off the database: the
// hash, extracted metadata, generated path, and the copy already placed at
// its destination. Safe to build for many files concurrently; only
// commitImport below needs the single writer connection.
type preparedImport struct {
	path         string
	digest       string
	size         int64
	meta         extract.Metadata
	relativePath string
	dest         string
}

// Import ingests one file: validate, hash, dedupe-check, extract metadata,
// generate a destination path, copy, write the row transactionally, and
// record history. A hash match against an existing non-deleted file
// short-circuits the whole pipeline and returns that file instead.
func (im *Importer) Import(ctx context.Context, path string, opts Options) (*Result, error) {
	prepared, shortCircuit, err := im.prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	if shortCircuit != nil {
		return shortCircuit, nil
	}
	return im.commit(ctx, prepared, opts)
}

// prepare validates, hashes, checks for a dedupe match, extracts metadata,
// generates the destination path, and copies the file into place. It
// performs no database writes. A non-nil shortCircuit means an existing
// file already matched the content hash and nothing further needs to run.
func (im *Importer) prepare(ctx context.Context, path string) (prepared *preparedImport, shortCircuit *Result, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, nil, fmt.Errorf("import %s: %w", path, statErr)
	}

	digest, size, err := hashio.HashFile(path, im.hashAlgo)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", path, err)
	}

	existing, err := storage.GetFileByHash(ctx, im.db.Reader, digest)
	if err == nil && !existing.IsDeleted {
		log.Printf("importer: %s already present as file %s, skipping", path, existing.ID)
		return nil, &Result{File: existing, AlreadyExisted: true}, nil
	}
	if err != nil && err != storage.ErrNotFound {
		return nil, nil, fmt.Errorf("import %s: dedupe check: %w", path, err)
	}

	meta, err := im.extractor.Extract(path)
	if err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", path, err)
	}

	relativePath := im.gen.GeneratePath(pathgen.Metadata{
		Title:     meta.Title,
		Authors:   meta.Authors,
		Year:      meta.Year,
		Category1: meta.Category1,
		Category2: derefStr(meta.Category2),
		Category3: derefStr(meta.Category3),
		Extension: filepath.Ext(path),
	})
	dest := filepath.Join(im.cfg.Import.Paths.StorageDir, relativePath)

	if err := im.copyIntoLibrary(path, dest, digest); err != nil {
		return nil, nil, fmt.Errorf("import %s: %w", path, err)
	}

	return &preparedImport{
		path: path, digest: digest, size: size, meta: meta,
		relativePath: relativePath, dest: dest,
	}, nil, nil
}

// commit writes p's File row, join tables, and metadata in one transaction,
// then records history and honors opts.DeleteOriginal.
func (im *Importer) commit(ctx context.Context, p *preparedImport, opts Options) (*Result, error) {
	now := time.Now()
	f := &storage.File{
		ID:               uuid.NewString(),
		Title:            p.meta.Title,
		OriginalFilename: filepath.Base(p.path),
		InitialHash:      p.digest,
		CurrentHash:      p.digest,
		RelativePath:     p.relativePath,
		OriginalPath:     p.path,
		Size:             p.size,
		Year:             p.meta.Year,
		Publisher:        p.meta.Publisher,
		Source:           p.meta.Source,
		Category1:        p.meta.Category1,
		Category2:        p.meta.Category2,
		Category3:        p.meta.Category3,
		Summary:          p.meta.Summary,
		FullText:         p.meta.FullText,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := storage.WithTx(ctx, im.db, func(tx *sql.Tx) error {
		if err := storage.InsertFile(ctx, tx, f); err != nil {
			return err
		}

		authorIDs, err := im.resolveAuthors(ctx, tx, p.meta.Authors)
		if err != nil {
			return err
		}
		if err := storage.ReplaceFileAuthors(ctx, tx, f.ID, authorIDs); err != nil {
			return err
		}

		tagIDs, err := im.resolveTags(ctx, tx, p.meta.Tags)
		if err != nil {
			return err
		}
		if err := storage.ReplaceFileTags(ctx, tx, f.ID, tagIDs); err != nil {
			return err
		}

		if err := storage.ReplaceFileMetadata(ctx, tx, f.ID, p.meta.AdditionalInfo); err != nil {
			return err
		}

		return storage.SyncFileFTS(ctx, tx, f.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: commit: %w", p.path, err)
	}

	if _, err := im.history.Record(ctx, history.Entry{
		FileID:    f.ID,
		Operation: history.OperationCreate,
		NewHash:   &p.digest,
		NewPath:   &p.relativePath,
		NewSize:   &p.size,
	}); err != nil {
		return nil, fmt.Errorf("import %s: record history: %w", p.path, err)
	}

	if opts.DeleteOriginal {
		if err := os.Remove(p.path); err != nil {
			return nil, fmt.Errorf("import %s: remove original after commit: %w", p.path, err)
		}
	}

	stored, err := storage.GetFileByID(ctx, im.db.Reader, f.ID)
	if err != nil {
		return nil, err
	}
	return &Result{File: stored}, nil
}

// copyIntoLibrary places path at dest, skipping the copy if dest already
// holds a file with the same digest (a prior partial import or a file
// already relocated to the generated path).
func (im *Importer) copyIntoLibrary(path, dest, digest string) error {
	if existingDigest, _, err := hashio.HashFile(dest, im.hashAlgo); err == nil && existingDigest == digest {
		return nil
	}
	_, err := hashio.SafeCopyFile(path, dest, im.hashAlgo)
	return err
}

func (im *Importer) resolveAuthors(ctx context.Context, ex storage.ExecQueryer, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		a, err := storage.GetAuthorByName(ctx, ex, name)
		if err == storage.ErrNotFound {
			a = &storage.Author{ID: uuid.NewString(), Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
			if err := storage.InsertAuthor(ctx, ex, a); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (im *Importer) resolveTags(ctx context.Context, ex storage.ExecQueryer, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		t, err := storage.GetTagByName(ctx, ex, name)
		if err == storage.ErrNotFound {
			now := time.Now()
			t = &storage.Tag{ID: uuid.NewString(), Name: name, Path: name, CreatedAt: now, UpdatedAt: now}
			if err := storage.InsertTag(ctx, ex, t); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ImportDirectory discovers every file under root matching include/exclude
// glob patterns and runs ImportBatch over the result.
func (im *Importer) ImportDirectory(ctx context.Context, root string, include, exclude []string, opts Options, concurrency int) ([]BatchResult, error) {
	paths, err := extract.Discover(root, include, exclude)
	if err != nil {
		return nil, fmt.Errorf("discover files under %s: %w", root, err)
	}
	return im.ImportBatch(ctx, paths, opts, concurrency), nil
}

// ImportBatch extracts metadata for every path with bounded parallelism
// (prepare: hash, dedupe-check, extract, path-gen, copy), then commits each
// prepared file to the database serially, since SQLite's single writer
// connection would otherwise just serialize the writes anyway. One path's
// failure never stops the rest.
func (im *Importer) ImportBatch(ctx context.Context, paths []string, opts Options, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = 4
	}

	type prepOutcome struct {
		prepared     *preparedImport
		shortCircuit *Result
		err          error
	}
	outcomes := make([]prepOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			prepared, shortCircuit, err := im.prepare(gctx, p)
			outcomes[i] = prepOutcome{prepared: prepared, shortCircuit: shortCircuit, err: err}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]BatchResult, len(paths))
	for i, p := range paths {
		o := outcomes[i]
		switch {
		case o.err != nil:
			results[i] = BatchResult{Path: p, Err: o.err}
		case o.shortCircuit != nil:
			results[i] = BatchResult{Path: p, Result: o.shortCircuit}
		default:
			res, err := im.commit(ctx, o.prepared, opts)
			results[i] = BatchResult{Path: p, Result: res, Err: err}
		}
	}
	return results
}
