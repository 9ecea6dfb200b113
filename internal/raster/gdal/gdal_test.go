//go:build gdal

package gdal

import (
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kiesman99/rstile/internal/raster"
)

func TestConcurrentReadWindow(t *testing.T) {
	const width, height, bands = 64, 48, 3

	planes := make([]*raster.Plane, bands)
	for b := range planes {
		planes[b] = raster.NewPlane(width, height)
		for i := range planes[b].Pix {
			planes[b].Pix[i] = float64((i + b*1000) % 65536)
		}
	}

	drv := New(raster.Options{})
	path := filepath.Join(t.TempDir(), "scene.tiff")
	if err := drv.Create(path, planes, raster.Uint16); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ds, err := drv.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ds.Close()

	// Many workers share the handle, as the exporter's pool does
	var wg sync.WaitGroup
	errs := make(chan error, 16*bands)
	for w := 0; w < 16; w++ {
		for b := 0; b < bands; b++ {
			wg.Add(1)
			go func(w, b int) {
				defer wg.Done()
				r := image.Rect(w*4, w*3, w*4+8, w*3+6).Intersect(image.Rect(0, 0, width, height))
				p, err := ds.ReadWindow(b, r)
				if err != nil {
					errs <- err
					return
				}
				for y := 0; y < p.Height; y++ {
					for x := 0; x < p.Width; x++ {
						if got, want := p.At(x, y), planes[b].At(r.Min.X+x, r.Min.Y+y); got != want {
							t.Errorf("Band %d at (%d,%d): expected %v, got %v", b, r.Min.X+x, r.Min.Y+y, want, got)
							return
						}
					}
				}
			}(w, b)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ReadWindow failed: %v", err)
	}
}
