package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor reads page count and concatenated page text via pdfcpu.
type PDFExtractor struct{}

// Extract returns the page count in AdditionalInfo and the document's
// extracted text as FullText, feeding the search index; title and authors
// are left to the filename guess since pdfcpu does not expose the document
// info dictionary through its content-extraction API.
func (PDFExtractor) Extract(path string) (Metadata, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read pdf context: %w", err)
	}

	meta := Metadata{AdditionalInfo: map[string]string{
		"page_count": fmt.Sprintf("%d", ctx.PageCount),
	}}

	outDir, err := os.MkdirTemp("", "tagbox-pdf-extract-*")
	if err != nil {
		return meta, nil
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return meta, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return meta, nil
	}

	var text string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		text += string(content)
	}
	if text != "" {
		meta.FullText = &text
	}
	return meta, nil
}
