// Package tagbox wires the storage, importer, editor, search, validate, and
// auxiliary managers into one Library handle and normalizes every error they
// can return into the closed set of error kinds callers are expected to
// branch on.
package tagbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerdneilsfield/tagbox-go/internal/authors"
	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/editor"
	"github.com/nerdneilsfield/tagbox-go/internal/history"
	"github.com/nerdneilsfield/tagbox-go/internal/importer"
	"github.com/nerdneilsfield/tagbox-go/internal/links"
	"github.com/nerdneilsfield/tagbox-go/internal/search"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
	"github.com/nerdneilsfield/tagbox-go/internal/sysconfig"
	"github.com/nerdneilsfield/tagbox-go/internal/validate"
)

// Kind is one of the closed set of error categories callers branch on.
type Kind string

const (
	KindFileNotFound  Kind = "file_not_found"
	KindInvalidFileID Kind = "invalid_file_id"
	KindDuplicate     Kind = "duplicate"
	KindDatabase      Kind = "database"
	KindIO            Kind = "io"
	KindSerialization Kind = "serialization"
	KindConfig        Kind = "config"
	KindImport        Kind = "import"
	KindNotFound      Kind = "not_found"
)

// Error is the typed error every Library method returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Library is the top-level handle for one opened TagBox document library.
// It owns the database connection pair and every manager layered on top of
// it.
type Library struct {
	db     *storage.DB
	cfg    *config.Config
	Import *importer.Importer
	Edit   *editor.Editor
	Search *search.Searcher
	Valid  *validate.Validator
	Auth   *authors.Manager
	Links  *links.Manager
	Sys    *sysconfig.Manager
	Hist   *history.Manager
}

// Open opens (or creates) a library database at cfg.Database.Path, checks
// system-config compatibility against cfg, and wires every manager over the
// resulting connection.
func Open(ctx context.Context, cfg *config.Config) (*Library, error) {
	opts := storage.Options{
		JournalMode:    cfg.Database.JournalMode,
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeoutMs:  cfg.Database.BusyTimeoutMs,
		SyncMode:       cfg.Database.SyncMode,
	}
	db, err := storage.Open(cfg.Database.Path, opts)
	if err != nil {
		return nil, wrap(KindDatabase, "open library", err)
	}

	sys := sysconfig.New(db)
	compat, err := sys.CheckCompatibility(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, wrap(KindDatabase, "check compatibility", err)
	}
	if len(compat.Errors) > 0 {
		db.Close()
		return nil, wrap(KindConfig, compat.Errors[0], nil)
	}

	return &Library{
		db:     db,
		cfg:    cfg,
		Import: importer.New(db, cfg),
		Edit:   editor.New(db, cfg),
		Search: search.New(ctx, db, cfg.Search),
		Valid:  validate.New(db, cfg),
		Auth:   authors.New(db),
		Links:  links.New(db),
		Sys:    sys,
		Hist:   history.New(db),
	}, nil
}

// Close releases the library's database connections and advisory lock.
func (l *Library) Close() error {
	return l.db.Close()
}

// ImportFile imports one file, translating dedupe-as-success, missing-source,
// and storage errors into the closed error kinds.
func (l *Library) ImportFile(ctx context.Context, path string, opts importer.Options) (*storage.File, error) {
	res, err := l.Import.Import(ctx, path, opts)
	if err != nil {
		return nil, classifyImportErr(path, err)
	}
	return res.File, nil
}

// GetFile fetches one file by id, translating storage.ErrNotFound into
// KindFileNotFound.
func (l *Library) GetFile(ctx context.Context, id string) (*storage.File, error) {
	f, err := storage.GetFileByID(ctx, l.db.Reader, id)
	if err == storage.ErrNotFound {
		return nil, wrap(KindFileNotFound, fmt.Sprintf("file %s not found", id), err)
	}
	if err != nil {
		return nil, wrap(KindDatabase, "get file", err)
	}
	return f, nil
}

// UpdateFile applies patch to file id, translating an unknown id into
// KindInvalidFileID.
func (l *Library) UpdateFile(ctx context.Context, id string, patch editor.Patch, opts editor.MoveOptions) (*storage.File, error) {
	f, err := l.Edit.UpdateWithMove(ctx, id, patch, opts)
	if err != nil {
		if errors.Is(err, editor.ErrInvalidFileID) {
			return nil, wrap(KindInvalidFileID, fmt.Sprintf("file %s not found", id), err)
		}
		return nil, wrap(KindDatabase, "update file", err)
	}
	return f, nil
}

// SearchFiles runs a DSL query against the library.
func (l *Library) SearchFiles(ctx context.Context, query string, opts search.Options) (*search.SearchResult, error) {
	result, err := l.Search.SearchAdvanced(ctx, query, opts)
	if err != nil {
		return nil, wrap(KindDatabase, "search", err)
	}
	return result, nil
}

func classifyImportErr(path string, err error) error {
	return wrap(KindImport, fmt.Sprintf("import %s", path), err)
}
