package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor renders Markdown (or plain text, treated as a single
// paragraph) to find a title from the first heading and feeds the rendered
// plain text into FullText.
type MarkdownExtractor struct{}

// Extract parses the Markdown AST for the first level-1 heading as a title
// hint and walks every text node for FullText.
func (MarkdownExtractor) Extract(path string) (Metadata, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read %s: %w", path, err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var title string
	var body strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 1 && title == "" {
			title = string(heading.Text(src))
		}
		if t, ok := n.(*ast.Text); ok {
			body.Write(t.Segment.Value(src))
			body.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("walk markdown %s: %w", path, err)
	}

	meta := Metadata{Title: title, AdditionalInfo: map[string]string{}}
	if full := strings.TrimSpace(body.String()); full != "" {
		meta.FullText = &full
	}
	return meta, nil
}
