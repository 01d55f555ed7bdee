// Package links manages directed relations between files (e.g. "related",
// "supersedes", "translation-of").
package links

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// Manager owns file_links CRUD.
type Manager struct {
	db *storage.DB
}

// New builds a Manager over an opened library database.
func New(db *storage.DB) *Manager {
	return &Manager{db: db}
}

// Link records relationType from fileIDA to fileIDB. Returns
// storage.ErrSelfLink if the two ids match.
func (m *Manager) Link(ctx context.Context, fileIDA, fileIDB, relationType string) error {
	return storage.InsertFileLink(ctx, m.db.Writer, &storage.FileLink{
		FileIDA: fileIDA, FileIDB: fileIDB, RelationType: relationType, CreatedAt: time.Now(),
	})
}

// Unlink removes a relation, in whichever direction it was recorded.
func (m *Manager) Unlink(ctx context.Context, fileIDA, fileIDB, relationType string) error {
	return storage.DeleteFileLink(ctx, m.db.Writer, fileIDA, fileIDB, relationType)
}

// ListForFile returns every link touching fileID.
func (m *Manager) ListForFile(ctx context.Context, fileID string) ([]storage.FileLink, error) {
	return storage.ListLinksForFile(ctx, m.db.Reader, fileID)
}

// UnlinkPair is one relation to remove, as parsed from a batch file.
type UnlinkPair struct {
	FileIDA      string
	FileIDB      string
	RelationType string
}

// BatchResult pairs one batch input pair with its outcome.
type BatchResult struct {
	Pair UnlinkPair
	Err  error
}

// ParseUnlinkPairs reads whitespace-separated "fileIDA fileIDB relation"
// triples from r, one per line. Blank lines and lines starting with "#" are
// skipped.
func ParseUnlinkPairs(r io.Reader) ([]UnlinkPair, error) {
	var pairs []UnlinkPair
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected \"file-id-a file-id-b relation\", got %q", lineNo, line)
		}
		pairs = append(pairs, UnlinkPair{FileIDA: fields[0], FileIDB: fields[1], RelationType: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read unlink batch: %w", err)
	}
	return pairs, nil
}

// UnlinkPairsFromFile opens path and parses it with ParseUnlinkPairs.
func UnlinkPairsFromFile(path string) ([]UnlinkPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open unlink batch %s: %w", path, err)
	}
	defer f.Close()
	return ParseUnlinkPairs(f)
}

// UnlinkBatch removes every pair's relation, serially, since SQLite's
// single writer connection would otherwise just serialize the deletes
// anyway. One pair's failure never stops the rest.
func (m *Manager) UnlinkBatch(ctx context.Context, pairs []UnlinkPair) []BatchResult {
	results := make([]BatchResult, len(pairs))
	for i, p := range pairs {
		results[i] = BatchResult{Pair: p, Err: m.Unlink(ctx, p.FileIDA, p.FileIDB, p.RelationType)}
	}
	return results
}
