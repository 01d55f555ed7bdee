// Package extract derives a document's metadata from its filename, an
// optional JSON sidecar, and format-specific readers (PDF, EPUB, image,
// Markdown/text), merging all of them with sidecar-and-format data taking
// precedence over the filename guess.
package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
)

// Metadata is what extraction produces for one file, before it becomes a
// storage.File row.
type Metadata struct {
	Title          string
	Authors        []string
	Year           *int
	Publisher      *string
	Source         *string
	Category1      string
	Category2      *string
	Category3      *string
	Tags           []string
	Summary        *string
	FullText       *string
	AdditionalInfo map[string]string
}

// FormatExtractor pulls additional metadata out of one file format. A
// FormatExtractor is only ever called with a base guess already populated
// from the filename, so it is free to return a mostly-empty Metadata and
// let Merge fall back to that guess.
type FormatExtractor interface {
	Extract(path string) (Metadata, error)
}

// Extractor runs the full pipeline: filename guess, optional JSON sidecar,
// format-specific extraction, and default category fill.
type Extractor struct {
	cfg      config.ImportMetadataConfig
	registry map[string]FormatExtractor
}

// New builds an Extractor with the default PDF/EPUB/image/Markdown format
// extractors registered by extension.
func New(cfg config.ImportMetadataConfig) *Extractor {
	e := &Extractor{cfg: cfg, registry: make(map[string]FormatExtractor)}
	if cfg.FallbackPDF {
		e.Register(".pdf", PDFExtractor{})
	}
	e.Register(".epub", EPUBExtractor{})
	img := ImageExtractor{}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"} {
		e.Register(ext, img)
	}
	md := MarkdownExtractor{}
	for _, ext := range []string{".md", ".markdown", ".txt"} {
		e.Register(ext, md)
	}
	return e
}

// Register adds or replaces the FormatExtractor used for a lowercase file
// extension (including its leading dot).
func (e *Extractor) Register(ext string, fe FormatExtractor) {
	e.registry[strings.ToLower(ext)] = fe
}

// Extract runs the full pipeline against one file path.
func (e *Extractor) Extract(path string) (Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return Metadata{}, fmt.Errorf("extract %s: %w", path, err)
	}

	meta := extractFromFilename(path, e.cfg.DefaultCategory)

	if e.cfg.PreferJSON {
		if sidecar, err := extractFromJSON(path, e.cfg.DefaultCategory); err == nil {
			meta = Merge(meta, sidecar)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if fe, ok := e.registry[ext]; ok {
		if formatMeta, err := fe.Extract(path); err == nil {
			meta = Merge(meta, formatMeta)
		}
	}

	if meta.Category1 == "" {
		meta.Category1 = e.cfg.DefaultCategory
	}
	return meta, nil
}

// authorYearPattern matches a trailing "(YYYY)" in an author segment, e.g.
// "Jane Doe (2023)".
var authorYearPattern = regexp.MustCompile(`^(.*)\((\d{4})\)\s*$`)

// extractFromFilename derives a base guess from "Title - Author (Year)"-
// shaped filenames, falling back to the bare stem when no " - " separator
// is present.
func extractFromFilename(path, defaultCategory string) Metadata {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.SplitN(stem, " - ", 2)

	meta := Metadata{
		Title:          parts[0],
		Category1:      defaultCategory,
		AdditionalInfo: map[string]string{},
	}
	if meta.Title == "" {
		meta.Title = stem
	}

	if len(parts) > 1 {
		authorPart := strings.TrimSpace(parts[1])
		if m := authorYearPattern.FindStringSubmatch(authorPart); m != nil {
			author := strings.TrimSpace(m[1])
			if year, err := strconv.Atoi(m[2]); err == nil {
				meta.Authors = []string{author}
				meta.Year = &year
			} else {
				meta.Authors = []string{authorPart}
			}
		} else {
			meta.Authors = []string{authorPart}
		}
	}
	return meta
}

func sidecarPath(path string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return stem + ".meta.json"
}

var jsonTopLevelFields = map[string]bool{
	"title": true, "authors": true, "year": true, "publisher": true,
	"source": true, "category1": true, "category2": true, "category3": true,
	"tags": true, "summary": true, "full_text": true,
}

func extractFromJSON(path, defaultCategory string) (Metadata, error) {
	raw, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return Metadata{}, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", sidecarPath(path), err)
	}

	meta := Metadata{Category1: defaultCategory, AdditionalInfo: map[string]string{}}
	if v, ok := doc["title"].(string); ok {
		meta.Title = v
	}
	if arr, ok := doc["authors"].([]interface{}); ok {
		for _, a := range arr {
			if s, ok := a.(string); ok {
				meta.Authors = append(meta.Authors, s)
			}
		}
	}
	if v, ok := doc["year"].(float64); ok {
		year := int(v)
		meta.Year = &year
	}
	if v, ok := doc["publisher"].(string); ok {
		meta.Publisher = &v
	}
	if v, ok := doc["source"].(string); ok {
		meta.Source = &v
	}
	if v, ok := doc["category1"].(string); ok {
		meta.Category1 = v
	}
	if v, ok := doc["category2"].(string); ok {
		meta.Category2 = &v
	}
	if v, ok := doc["category3"].(string); ok {
		meta.Category3 = &v
	}
	if arr, ok := doc["tags"].([]interface{}); ok {
		for _, t := range arr {
			if s, ok := t.(string); ok {
				meta.Tags = append(meta.Tags, s)
			}
		}
	}
	if v, ok := doc["summary"].(string); ok {
		meta.Summary = &v
	}
	if v, ok := doc["full_text"].(string); ok {
		meta.FullText = &v
	}

	for key, value := range doc {
		if jsonTopLevelFields[key] {
			continue
		}
		if s, ok := value.(string); ok {
			meta.AdditionalInfo[key] = s
		}
	}
	return meta, nil
}

// Merge combines base with override, preferring override's non-empty
// string/slice fields and Some-valued optionals, unioning tags in order
// while dropping duplicates, and right-biasing the additional_info map.
func Merge(base, override Metadata) Metadata {
	merged := Metadata{
		Title:     firstNonEmpty(override.Title, base.Title),
		Category1: firstNonEmpty(override.Category1, base.Category1),
		Year:      firstNonNilInt(override.Year, base.Year),
		Publisher: firstNonNilStr(override.Publisher, base.Publisher),
		Source:    firstNonNilStr(override.Source, base.Source),
		Category2: firstNonNilStr(override.Category2, base.Category2),
		Category3: firstNonNilStr(override.Category3, base.Category3),
		Summary:   firstNonNilStr(override.Summary, base.Summary),
		FullText:  firstNonNilStr(override.FullText, base.FullText),
	}

	if len(override.Authors) > 0 {
		merged.Authors = override.Authors
	} else {
		merged.Authors = base.Authors
	}

	merged.Tags = append([]string{}, base.Tags...)
	for _, tag := range override.Tags {
		if !contains(merged.Tags, tag) {
			merged.Tags = append(merged.Tags, tag)
		}
	}

	merged.AdditionalInfo = make(map[string]string, len(base.AdditionalInfo)+len(override.AdditionalInfo))
	for k, v := range base.AdditionalInfo {
		merged.AdditionalInfo[k] = v
	}
	for k, v := range override.AdditionalInfo {
		merged.AdditionalInfo[k] = v
	}
	return merged
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonNilInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilStr(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
