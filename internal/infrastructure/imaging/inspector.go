// Package imaging reads image headers to judge scan quality.
package imaging

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect decodes only the image header. An undecodable file is not an
// error: it yields ImageInfo with Decoded=false so the caller can flag it.
func (i *Inspector) Inspect(ctx context.Context, path string) (domain.ImageInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.ImageInfo{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return domain.ImageInfo{Decoded: false}, nil
	}
	return domain.ImageInfo{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  format,
		Decoded: true,
	}, nil
}
