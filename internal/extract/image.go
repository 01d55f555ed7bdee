package extract

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ImageExtractor records an image's pixel dimensions and decoded format in
// AdditionalInfo. It never touches title/authors; the filename guess is
// left untouched for those.
type ImageExtractor struct{}

// Extract decodes just the image header (image.DecodeConfig never reads
// pixel data) to report width, height, and format cheaply.
func (ImageExtractor) Extract(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Metadata{}, fmt.Errorf("decode image header %s: %w", path, err)
	}

	return Metadata{AdditionalInfo: map[string]string{
		"width":  fmt.Sprintf("%d", cfg.Width),
		"height": fmt.Sprintf("%d", cfg.Height),
		"format": format,
	}}, nil
}
