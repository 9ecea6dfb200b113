package raster

import (
	"image"
	"image/png"
	"io"

	"github.com/kiesman99/rstile/pkg/tile"
)

// WriteFile streams write into a temporary file next to path and renames it
// into place, so path either holds a complete file or is left untouched
func WriteFile(path string, write func(io.Writer) error) error {
	if err := tile.WriteFile(path, write); err != nil {
		return writeError(path, err)
	}
	return nil
}

// WritePNG encodes img as PNG at path
func WritePNG(path string, img image.Image) error {
	return WriteFile(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}
