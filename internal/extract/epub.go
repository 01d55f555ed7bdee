package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EPUBExtractor reads title/creator from the package's OPF metadata and
// concatenates every XHTML content document's text into FullText.
type EPUBExtractor struct{}

// Extract opens the EPUB as a zip archive (its actual container format),
// locates the .opf package document, and pulls dc:title/dc:creator out of
// it via goquery.
func (EPUBExtractor) Extract(path string) (Metadata, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open epub %s: %w", path, err)
	}
	defer r.Close()

	meta := Metadata{AdditionalInfo: map[string]string{}}
	var textParts []string

	for _, f := range r.File {
		lower := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(lower, ".opf"):
			if doc, err := openAsDoc(f); err == nil {
				if title := doc.Find("title").First().Text(); title != "" {
					meta.Title = strings.TrimSpace(title)
				}
				if creator := doc.Find("creator").First().Text(); creator != "" {
					meta.Authors = []string{strings.TrimSpace(creator)}
				}
			}
		case strings.HasSuffix(lower, ".xhtml"), strings.HasSuffix(lower, ".html"):
			if doc, err := openAsDoc(f); err == nil {
				textParts = append(textParts, strings.TrimSpace(doc.Find("body").Text()))
			}
		}
	}

	if len(textParts) > 0 {
		full := strings.Join(textParts, "\n\n")
		meta.FullText = &full
	}
	return meta, nil
}

func openAsDoc(f *zip.File) (*goquery.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(string(content)))
}
