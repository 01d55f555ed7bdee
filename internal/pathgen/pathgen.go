// Package pathgen expands TagBox's filename and directory token templates
// into deterministic, sanitized relative paths under the storage root.
package pathgen

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Metadata supplies the token values a template may reference. Every
// field is optional; an absent value expands to the empty string.
type Metadata struct {
	Title      string
	Authors    []string
	Year       *int
	Category1  string
	Category2  string
	Category3  string
	Extension  string
}

// illegalChars matches characters forbidden on the least-permissive
// common target filesystem (Windows): control characters, path
// separators, and reserved punctuation.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Sanitize strips characters that are illegal in a path segment and
// collapses surrounding whitespace, so templated output never escapes
// the generated directory via a separator smuggled in metadata.
func Sanitize(value string) string {
	cleaned := illegalChars.ReplaceAllString(value, "_")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}

func tokens(m Metadata) map[string]string {
	year := ""
	if m.Year != nil {
		year = strconv.Itoa(*m.Year)
	}
	return map[string]string{
		"title":     sanitizeToken(m.Title),
		"authors":   sanitizeToken(strings.Join(m.Authors, "_")),
		"year":      year,
		"category1": sanitizeToken(m.Category1),
		"category2": sanitizeToken(m.Category2),
		"category3": sanitizeToken(m.Category3),
	}
}

// sanitizeToken sanitizes a present value and leaves an absent one empty.
func sanitizeToken(value string) string {
	if value == "" {
		return ""
	}
	return Sanitize(value)
}

// tokenPattern matches a `{name}` placeholder.
var tokenPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// expand substitutes every `{token}` in template from values, leaving
// unknown tokens as empty strings.
func expand(template string, values map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		return values[name]
	})
}

// Generator expands a filename template and a classify (directory)
// template against a file's metadata.
type Generator struct {
	RenameTemplate   string
	ClassifyTemplate string
}

// New builds a Generator from the two configured templates.
func New(renameTemplate, classifyTemplate string) *Generator {
	return &Generator{RenameTemplate: renameTemplate, ClassifyTemplate: classifyTemplate}
}

// GenerateFilename expands the rename template and appends the file
// extension (with its leading dot, if any).
func (g *Generator) GenerateFilename(m Metadata) string {
	name := expand(g.RenameTemplate, tokens(m))
	name = strings.Trim(name, "_")
	if name == "" {
		name = "untitled"
	}
	ext := strings.TrimPrefix(m.Extension, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// GeneratePath expands the classify template, substituting the generated
// filename for the `{filename}` token, and returns a slash-separated
// relative path rooted at the storage directory.
func (g *Generator) GeneratePath(m Metadata) string {
	filename := g.GenerateFilename(m)
	values := tokens(m)
	values["filename"] = filename

	rel := expand(g.ClassifyTemplate, values)
	rel = path.Clean("/" + rel)
	return strings.TrimPrefix(rel, "/")
}
