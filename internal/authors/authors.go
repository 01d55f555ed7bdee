// Package authors manages canonical author identities: creation, alias
// mapping, merging duplicates together, and a name-similarity heuristic for
// suggesting merge candidates.
package authors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// Author is an author with its resolved alias names attached.
type Author struct {
	storage.Author
	Aliases []string
}

// Manager owns author creation, aliasing, and merges.
type Manager struct {
	db *storage.DB
}

// New builds a Manager over an opened library database.
func New(db *storage.DB) *Manager {
	return &Manager{db: db}
}

// Get fetches an author by id along with the names of its aliases. An alias
// whose author row no longer exists (Merge deletes the source row) is
// skipped, so a merged-away author's name does not appear in Aliases.
func (m *Manager) Get(ctx context.Context, id string) (*Author, error) {
	base, err := storage.GetAuthorByID(ctx, m.db.Reader, id)
	if err != nil {
		return nil, err
	}
	aliasIDs, err := storage.ListAuthorAliases(ctx, m.db.Reader, id)
	if err != nil {
		return nil, err
	}

	a := &Author{Author: *base}
	for _, aliasID := range aliasIDs {
		alias, err := storage.GetAuthorByID(ctx, m.db.Reader, aliasID)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		a.Aliases = append(a.Aliases, alias.Name)
	}
	return a, nil
}

// Create creates a new canonical author, or returns the existing one if the
// name is already taken. Idempotent by name, matching import's author
// resolution: a file's author list never produces a duplicate row.
func (m *Manager) Create(ctx context.Context, name string) (*Author, error) {
	existing, err := storage.GetAuthorByName(ctx, m.db.Reader, name)
	if err == nil {
		return m.Get(ctx, existing.ID)
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	now := time.Now()
	a := &storage.Author{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := storage.InsertAuthor(ctx, m.db.Writer, a); err != nil {
		return nil, err
	}
	return &Author{Author: *a}, nil
}

// ErrAliasConflict is returned by AddAlias when aliasID already resolves to
// a different canonical author.
var ErrAliasConflict = errors.New("authors: alias already maps to a different canonical author")

// AddAlias records that aliasID should resolve to canonicalID. A no-op if
// that mapping already exists; ErrAliasConflict if aliasID already resolves
// to a different author.
func (m *Manager) AddAlias(ctx context.Context, canonicalID, aliasID string) error {
	existing, err := storage.GetAuthorAliasCanonical(ctx, m.db.Reader, aliasID)
	if err == nil {
		if existing == canonicalID {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrAliasConflict, aliasID, existing)
	}
	if err != storage.ErrNotFound {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	note := "Manually added alias"
	return storage.InsertAuthorAlias(ctx, m.db.Writer, aliasID, canonicalID, now, &note)
}

// Merge folds sourceID into targetID: every file authored by source is
// reattributed to target, every existing alias of source is repointed at
// target, source itself becomes an alias of target, and the now-redundant
// source author row is deleted. All four steps run in one transaction.
func (m *Manager) Merge(ctx context.Context, sourceID, targetID string) error {
	if _, err := storage.GetAuthorByID(ctx, m.db.Reader, sourceID); err != nil {
		return fmt.Errorf("merge authors: source %w", err)
	}
	if _, err := storage.GetAuthorByID(ctx, m.db.Reader, targetID); err != nil {
		return fmt.Errorf("merge authors: target %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	note := fmt.Sprintf("Merged from %s", sourceID)

	return storage.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := storage.ReassignFileAuthors(ctx, tx, sourceID, targetID); err != nil {
			return err
		}
		if err := storage.ReassignAuthorAliases(ctx, tx, sourceID, targetID); err != nil {
			return err
		}
		if err := storage.InsertAuthorAlias(ctx, tx, sourceID, targetID, now, &note); err != nil {
			return err
		}
		return storage.DeleteAuthor(ctx, tx, sourceID)
	})
}

// DuplicateCandidate is a pair of authors whose names are similar enough to
// be worth a human merge decision.
type DuplicateCandidate struct {
	AuthorA    storage.Author
	AuthorB    storage.Author
	Similarity float64
}

// FindDuplicates scans every author pair for a name-similarity score above
// 0.8, the threshold the heuristic below treats as "probably the same
// person."
func (m *Manager) FindDuplicates(ctx context.Context) ([]DuplicateCandidate, error) {
	all, err := storage.ListAllAuthors(ctx, m.db.Reader)
	if err != nil {
		return nil, err
	}

	var candidates []DuplicateCandidate
	for i, a := range all {
		for _, b := range all[i+1:] {
			score := nameSimilarity(a.Name, b.Name)
			if score > 0.8 {
				candidates = append(candidates, DuplicateCandidate{AuthorA: a, AuthorB: b, Similarity: score})
			}
		}
	}
	return candidates, nil
}

// nameSimilarity scores how likely two author name strings refer to the
// same person: exact match, a normalized (lowercase, whitespace-stripped)
// match, a prefix/suffix relationship, matching last name plus first
// initial, and finally a character-overlap ratio as a catch-all.
func nameSimilarity(name1, name2 string) float64 {
	if name1 == name2 {
		return 1.0
	}
	if name1 == "" || name2 == "" {
		return 0.0
	}

	norm1 := normalizeName(name1)
	norm2 := normalizeName(name2)
	if norm1 == norm2 {
		return 0.95
	}

	if strings.HasPrefix(norm1, norm2) || strings.HasPrefix(norm2, norm1) ||
		strings.HasSuffix(norm1, norm2) || strings.HasSuffix(norm2, norm1) {
		return 0.85
	}

	parts1 := strings.Fields(name1)
	parts2 := strings.Fields(name2)
	if len(parts1) > 1 && len(parts2) > 1 {
		if parts1[len(parts1)-1] == parts2[len(parts2)-1] {
			r1, _ := firstRune(parts1[0])
			r2, _ := firstRune(parts2[0])
			if r1 == r2 {
				return 0.9
			}
		}
	}

	common := 0
	for _, c := range norm1 {
		if strings.ContainsRune(norm2, c) {
			common++
		}
	}
	return float64(common) * 2.0 / float64(len(norm1)+len(norm2))
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}
