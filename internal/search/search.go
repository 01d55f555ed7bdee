// Package search parses TagBox's query DSL, plans it into SQL against the
// files/authors/tags schema, and executes it through the FTS5 index when
// free text is present.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Options tunes one search call. A zero value searches everything with the
// configured default limit, sorted by updated_at descending.
type Options struct {
	Offset         int
	Limit          int
	SortBy         string
	SortDescending bool
	IncludeDeleted bool
}

var sortAllowlist = map[string]bool{
	"updated_at": true,
	"created_at": true,
	"title":      true,
	"year":       true,
	"relevance":  true,
}

// SearchResult is a page of matches plus enough information to page through
// the rest.
type SearchResult struct {
	Entries    []*storage.File
	TotalCount int
	Offset     int
	Limit      int
}

// parsedQuery is the query DSL broken into its structured filters and a
// remaining free-text segment.
type parsedQuery struct {
	text        string
	title       string
	includeTags []string
	excludeTags []string
	authors     []string
	year        *int
	category1   string
	category2   string
	category3   string
}

// Searcher parses and executes queries against one library database.
type Searcher struct {
	db                 *storage.DB
	cfg                config.SearchConfig
	signalFTSAvailable bool
}

// New builds a Searcher and probes the database for the advanced tokenizer.
func New(ctx context.Context, db *storage.DB, cfg config.SearchConfig) *Searcher {
	return &Searcher{
		db:                 db,
		cfg:                cfg,
		signalFTSAvailable: checkSignalFTSAvailable(ctx, db.Reader),
	}
}

// checkSignalFTSAvailable reports whether files_fts was created with the
// CJK-aware tokenizer, by inspecting its own declared SQL in sqlite_master.
func checkSignalFTSAvailable(ctx context.Context, q storage.Queryer) bool {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='files_fts' AND sql LIKE '%signal_cjk%'`,
	).Scan(&count)
	return err == nil && count > 0
}

// Search runs query with default options and returns just the matched files.
func (s *Searcher) Search(ctx context.Context, query string) ([]*storage.File, error) {
	result, err := s.SearchAdvanced(ctx, query, Options{
		Limit:          s.cfg.DefaultLimit,
		SortBy:         "updated_at",
		SortDescending: true,
	})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// SearchAdvanced parses query, builds the filtered/sorted/paginated SQL, and
// runs it alongside a matching COUNT(*) for total_count.
func (s *Searcher) SearchAdvanced(ctx context.Context, query string, opts Options) (*SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.DefaultLimit
	}

	parsed := parseQuery(query)

	sel := builder.Select("f.id").From("files f")
	cnt := builder.Select("COUNT(DISTINCT f.id)").From("files f")

	if len(parsed.authors) > 0 {
		sel = sel.Join("file_authors fa ON f.id = fa.file_id").Join("authors a ON fa.author_id = a.id")
		cnt = cnt.Join("file_authors fa ON f.id = fa.file_id").Join("authors a ON fa.author_id = a.id")
	}
	if len(parsed.includeTags) > 0 || len(parsed.excludeTags) > 0 {
		sel = sel.LeftJoin("file_tags ft ON f.id = ft.file_id").LeftJoin("tags t ON ft.tag_id = t.id")
		cnt = cnt.LeftJoin("file_tags ft ON f.id = ft.file_id").LeftJoin("tags t ON ft.tag_id = t.id")
	}

	where := sq.And{}
	if parsed.title != "" {
		where = append(where, sq.Like{"f.title": "%" + parsed.title + "%"})
	}
	if len(parsed.includeTags) > 0 {
		where = append(where, sq.Eq{"t.name": parsed.includeTags})
	}
	if len(parsed.excludeTags) > 0 {
		excludeSub := builder.Select("ft2.file_id").
			From("file_tags ft2").
			Join("tags t2 ON ft2.tag_id = t2.id").
			Where(sq.Eq{"t2.name": parsed.excludeTags})
		sqlStr, args, err := excludeSub.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build exclude-tags subquery: %w", err)
		}
		where = append(where, sq.Expr("f.id NOT IN ("+sqlStr+")", args...))
	}
	if len(parsed.authors) > 0 {
		where = append(where, sq.Eq{"a.name": parsed.authors})
	}
	if parsed.year != nil {
		where = append(where, sq.Eq{"f.year": *parsed.year})
	}
	if parsed.category1 != "" {
		where = append(where, sq.Eq{"f.category1": parsed.category1})
	}
	if parsed.category2 != "" {
		where = append(where, sq.Eq{"f.category2": parsed.category2})
	}
	if parsed.category3 != "" {
		where = append(where, sq.Eq{"f.category3": parsed.category3})
	}
	if !opts.IncludeDeleted {
		where = append(where, sq.Eq{"f.is_deleted": false})
	}

	hasFreeText := parsed.text != "" && s.cfg.EnableFTS
	if hasFreeText {
		ftsQuery := s.buildFTSQuery(parsed.text)
		where = append(where, sq.Expr(
			"f.rowid IN (SELECT rowid FROM files_fts WHERE files_fts MATCH ?)", ftsQuery,
		))
	} else if parsed.text != "" {
		like := "%" + parsed.text + "%"
		where = append(where, sq.Or{sq.Like{"f.title": like}, sq.Like{"f.summary": like}})
	}

	if len(where) > 0 {
		sel = sel.Where(where)
		cnt = cnt.Where(where)
	}

	countSQL, countArgs, err := cnt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.Reader.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count search results: %w", err)
	}

	sortBy := opts.SortBy
	descending := opts.SortDescending
	if sortBy == "" && parsed.text == "" {
		sortBy = "updated_at"
		descending = true
	}
	if sortBy != "" {
		if !sortAllowlist[sortBy] {
			return nil, fmt.Errorf("invalid sort field %q", sortBy)
		}
		direction := "ASC"
		if descending {
			direction = "DESC"
		}
		if sortBy == "relevance" && hasFreeText {
			ftsQuery := s.buildFTSQuery(parsed.text)
			sel = sel.OrderBy(fmt.Sprintf(
				"(SELECT rank FROM files_fts WHERE files_fts.rowid = f.rowid AND files_fts MATCH '%s') ASC",
				escapeSQLLiteral(ftsQuery),
			))
		} else if sortBy == "relevance" {
			sel = sel.OrderBy("f.updated_at DESC")
		} else {
			sel = sel.OrderBy(fmt.Sprintf("f.%s %s", sortBy, direction))
		}
	}

	sel = sel.GroupBy("f.id").Limit(uint64(opts.Limit)).Offset(uint64(opts.Offset))

	selSQL, selArgs, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}
	rows, err := s.db.Reader.QueryContext(ctx, selSQL, selArgs...)
	if err != nil {
		return nil, fmt.Errorf("execute search query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan search result id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}

	entries := make([]*storage.File, 0, len(ids))
	for _, id := range ids {
		f, err := storage.GetFileByID(ctx, s.db.Reader, id)
		if err != nil {
			return nil, fmt.Errorf("load search result %s: %w", id, err)
		}
		entries = append(entries, f)
	}

	return &SearchResult{
		Entries:    entries,
		TotalCount: total,
		Offset:     opts.Offset,
		Limit:      opts.Limit,
	}, nil
}

// FuzzySearch runs a best-effort fuzzy match over free text, widening every
// term with leading/trailing wildcards when the advanced tokenizer is not
// available; SearchAdvanced's own per-term fuzzy variants already cover the
// standard-tokenizer case, so this only changes behavior when the caller
// wants a looser match than the DSL prefix/phrase rules give by default.
func (s *Searcher) FuzzySearch(ctx context.Context, text string, opts Options) (*SearchResult, error) {
	if text == "" {
		return s.SearchAdvanced(ctx, "", opts)
	}
	if s.signalFTSAvailable {
		return s.SearchAdvanced(ctx, text, opts)
	}

	terms := strings.Fields(text)
	for i, t := range terms {
		terms[i] = "*" + t + "*"
	}
	return s.SearchAdvanced(ctx, strings.Join(terms, " "), opts)
}

// buildFTSQuery builds the MATCH expression for text, branching on tokenizer
// capability: the advanced tokenizer gets a phrase+term+prefix disjunction,
// the fallback adds single-edit fuzzy variants for longer terms. Each fuzzy
// variant is double-quoted because '?' is not FTS5 query syntax; inside the
// quotes the tokenizer splits a substitution variant at the '?', so it
// matches as a two-token phrase rather than as a one-character wildcard.
func (s *Searcher) buildFTSQuery(text string) string {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return ""
	}

	var parts []string
	if len(terms) > 1 {
		parts = append(parts, quotePhrase(text))
	}
	for _, term := range terms {
		parts = append(parts, term, term+"*")
		if !s.signalFTSAvailable && len([]rune(term)) > 3 {
			for _, variant := range generateFuzzyTerms(term) {
				parts = append(parts, quotePhrase(variant))
			}
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func quotePhrase(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}

// escapeSQLLiteral doubles single quotes for safe embedding inside a
// single-quoted SQL string literal. Only needed for the ORDER BY relevance
// expression, which squirrel cannot bind a parameter into; every other use
// of the FTS query string goes through a bound placeholder.
func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// generateFuzzyTerms produces single-character-deletion, single-character-
// wildcard-substitution, and adjacent-swap variants of term, the same three
// families of edit used to recover from one typo against an FTS5 index that
// has no native fuzzy matching.
func generateFuzzyTerms(term string) []string {
	chars := []rune(term)
	if len(chars) < 4 {
		return nil
	}

	var variants []string

	for i := range chars {
		var b strings.Builder
		for j, c := range chars {
			if i != j {
				b.WriteRune(c)
			}
		}
		if b.Len() >= 3 {
			variants = append(variants, b.String())
		}
	}

	for i := range chars {
		var b strings.Builder
		for j, c := range chars {
			if i == j {
				b.WriteRune('?')
			} else {
				b.WriteRune(c)
			}
		}
		variants = append(variants, b.String())
	}

	for i := 0; i < len(chars)-1; i++ {
		swapped := append([]rune(nil), chars...)
		swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
		variants = append(variants, string(swapped))
	}

	return variants
}

// parseQuery splits query into its tag:/-tag:/author:/year:/category*:/title:
// prefixed tokens and a free-text remainder. A lone "*" clears the free-text
// segment so the caller falls through to the unfiltered/updated_at-sorted
// path instead of running an FTS query for a literal asterisk.
func parseQuery(query string) parsedQuery {
	var parsed parsedQuery
	var textParts []string

	for _, part := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(part, "-tag:"):
			if v := strings.TrimSpace(strings.TrimPrefix(part, "-tag:")); v != "" {
				parsed.excludeTags = append(parsed.excludeTags, v)
			}
		case strings.HasPrefix(part, "tag:"):
			if v := strings.TrimSpace(strings.TrimPrefix(part, "tag:")); v != "" {
				parsed.includeTags = append(parsed.includeTags, v)
			}
		case strings.HasPrefix(part, "author:"):
			if v := strings.TrimSpace(strings.TrimPrefix(part, "author:")); v != "" {
				parsed.authors = append(parsed.authors, v)
			}
		case strings.HasPrefix(part, "year:"):
			if v := strings.TrimSpace(strings.TrimPrefix(part, "year:")); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					parsed.year = &n
				}
			}
		case strings.HasPrefix(part, "category1:"):
			parsed.category1 = strings.TrimSpace(strings.TrimPrefix(part, "category1:"))
		case strings.HasPrefix(part, "category2:"):
			parsed.category2 = strings.TrimSpace(strings.TrimPrefix(part, "category2:"))
		case strings.HasPrefix(part, "category3:"):
			parsed.category3 = strings.TrimSpace(strings.TrimPrefix(part, "category3:"))
		case strings.HasPrefix(part, "category:"):
			parsed.category1 = strings.TrimSpace(strings.TrimPrefix(part, "category:"))
		case strings.HasPrefix(part, "title:"):
			parsed.title = strings.TrimSpace(strings.TrimPrefix(part, "title:"))
		default:
			textParts = append(textParts, part)
		}
	}

	parsed.text = strings.Join(textParts, " ")
	if strings.TrimSpace(parsed.text) == "*" {
		parsed.text = ""
	}
	return parsed
}
