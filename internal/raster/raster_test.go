package raster

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kiesman99/rstile/pkg/tile"
)

func gradient(w, h int, scale float64) *Plane {
	p := NewPlane(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p.Set(x, y, float64(y*w+x)*scale)
		}
	}
	return p
}

func TestMemoryReadWindow(t *testing.T) {
	ds, err := NewMemory(Uint16, gradient(10, 8, 1), gradient(10, 8, 2))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	p, err := ds.ReadWindow(1, image.Rect(2, 3, 5, 7))
	if err != nil {
		t.Fatalf("ReadWindow failed: %v", err)
	}
	if p.Width != 3 || p.Height != 4 {
		t.Fatalf("Expected 3x4 plane, got %dx%d", p.Width, p.Height)
	}
	if got, want := p.At(0, 0), float64(3*10+2)*2; got != want {
		t.Errorf("Expected %v at origin, got %v", want, got)
	}
	if got, want := p.At(2, 3), float64(6*10+4)*2; got != want {
		t.Errorf("Expected %v at (2,3), got %v", want, got)
	}
}

func TestReadWindowBounds(t *testing.T) {
	ds, err := NewMemory(Uint8, gradient(10, 10, 1))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	testCases := []struct {
		name string
		band int
		rect image.Rectangle
		err  error
	}{
		{"past right edge", 0, image.Rect(5, 0, 11, 5), ErrWindowOutOfBounds},
		{"negative origin", 0, image.Rect(-1, 0, 5, 5), ErrWindowOutOfBounds},
		{"empty", 0, image.Rect(3, 3, 3, 3), ErrWindowOutOfBounds},
		{"band too high", 1, image.Rect(0, 0, 5, 5), ErrBandOutOfRange},
		{"negative band", -1, image.Rect(0, 0, 5, 5), ErrBandOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ds.ReadWindow(tc.band, tc.rect); !errors.Is(err, tc.err) {
				t.Errorf("Expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	ds, err := NewMemory(Uint8, gradient(4, 4, 1), gradient(4, 4, 2), gradient(4, 4, 3))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	sel, err := Select(ds, DefaultBandOrder(ds.BandCount()))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.BandCount() != 3 {
		t.Fatalf("Expected 3 bands, got %d", sel.BandCount())
	}

	p, err := sel.ReadWindow(0, image.Rect(1, 1, 2, 2))
	if err != nil {
		t.Fatalf("ReadWindow failed: %v", err)
	}
	if p.At(0, 0) != 5*3 {
		t.Errorf("Band 0 of selection should be band 3, got %v", p.At(0, 0))
	}

	if _, err := Select(ds, []int{3}); !errors.Is(err, ErrBandCountMismatch) {
		t.Errorf("Expected ErrBandCountMismatch, got %v", err)
	}
}

func TestBandOrder(t *testing.T) {
	order, err := ParseBandOrder(" 4, 3 ,2")
	if err != nil {
		t.Fatalf("ParseBandOrder failed: %v", err)
	}
	if fmt.Sprint(order) != "[3 2 1]" {
		t.Errorf("Unexpected order %v", order)
	}
	if s := FormatBandOrder(order); s != "4,3,2" {
		t.Errorf("Unexpected formatted order %s", s)
	}

	if order, err := ParseBandOrder(""); err != nil || order != nil {
		t.Errorf("Empty order should be nil, got %v, %v", order, err)
	}
	if _, err := ParseBandOrder("0"); err == nil {
		t.Error("Expected error for band 0")
	}
	if _, err := ParseBandOrder("1,x"); err == nil {
		t.Error("Expected error for non-numeric band")
	}

	if fmt.Sprint(DefaultBandOrder(4)) != "[2 1 0]" {
		t.Errorf("Unexpected default order for 4 bands: %v", DefaultBandOrder(4))
	}
	if fmt.Sprint(DefaultBandOrder(2)) != "[0]" {
		t.Errorf("Unexpected default order for 2 bands: %v", DefaultBandOrder(2))
	}
}

func TestPlaneExtend(t *testing.T) {
	p := gradient(2, 2, 1)
	e := p.Extend(3, 4)
	if e.Width != 3 || e.Height != 4 {
		t.Fatalf("Expected 3x4, got %dx%d", e.Width, e.Height)
	}
	if e.At(1, 1) != 3 || e.At(2, 1) != 0 || e.At(0, 3) != 0 {
		t.Errorf("Unexpected extended plane %v", e.Pix)
	}
	if p.Extend(2, 2) != p {
		t.Error("Extend to the same size should return the plane")
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	drv := NewTIFF(Options{}, true)

	testCases := []struct {
		name      string
		dt        DataType
		bands     int
		readBands int
	}{
		{"gray8", Uint8, 1, 1},
		{"gray16", Uint16, 1, 1},
		{"rgb8", Uint8, 3, 4},
		{"rgb16", Uint16, 3, 4},
		{"rgba8", Uint8, 4, 4},
		{"rgba16", Uint16, 4, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			maxVal := 255.0
			if tc.dt == Uint16 {
				maxVal = 65535
			}
			planes := make([]*Plane, tc.bands)
			for b := range planes {
				planes[b] = NewPlane(7, 5)
				for i := range planes[b].Pix {
					planes[b].Pix[i] = float64((i*37 + b*11) % int(maxVal+1))
				}
			}

			path := filepath.Join(dir, tc.name+drv.Ext())
			if err := drv.Create(path, planes, tc.dt); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			ds, err := drv.Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer ds.Close()

			if ds.Width() != 7 || ds.Height() != 5 {
				t.Errorf("Expected 7x5, got %dx%d", ds.Width(), ds.Height())
			}
			if ds.BandCount() != tc.readBands {
				t.Errorf("Expected %d bands, got %d", tc.readBands, ds.BandCount())
			}
			if ds.DataType() != tc.dt {
				t.Errorf("Expected %s, got %s", tc.dt, ds.DataType())
			}

			for b := range planes {
				got, err := ReadBand(ds, b)
				if err != nil {
					t.Fatalf("ReadBand(%d) failed: %v", b, err)
				}
				for i, v := range planes[b].Pix {
					if got.Pix[i] != v {
						t.Fatalf("Band %d sample %d: expected %v, got %v", b, i, v, got.Pix[i])
					}
				}
			}

			if tc.bands == 3 {
				alpha, err := ReadBand(ds, 3)
				if err != nil {
					t.Fatalf("ReadBand(alpha) failed: %v", err)
				}
				if alpha.Pix[0] != maxVal {
					t.Errorf("Expected opaque alpha %v, got %v", maxVal, alpha.Pix[0])
				}
			}
		})
	}
}

func TestTIFFOpenErrors(t *testing.T) {
	dir := t.TempDir()
	drv := NewTIFF(Options{}, false)

	if _, err := drv.Open(filepath.Join(dir, "missing.tiff")); !errors.Is(err, ErrRasterOpen) {
		t.Errorf("Expected ErrRasterOpen for missing file, got %v", err)
	}

	junk := filepath.Join(dir, "junk.tiff")
	if err := os.WriteFile(junk, []byte("not a tiff at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := drv.Open(junk); !errors.Is(err, ErrRasterOpen) {
		t.Errorf("Expected ErrRasterOpen for junk file, got %v", err)
	}
}

func TestTIFFCreateUnsupported(t *testing.T) {
	dir := t.TempDir()
	drv := NewTIFF(Options{}, false)
	path := filepath.Join(dir, "two.tiff")

	err := drv.Create(path, []*Plane{NewPlane(2, 2), NewPlane(2, 2)}, Uint8)
	if !errors.Is(err, ErrFileWrite) {
		t.Errorf("Expected ErrFileWrite, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no file at %s, got %v", path, err)
	}
}

func TestWriteFileLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	err := WriteFile(path, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return fmt.Errorf("encoder exploded")
	})
	if !errors.Is(err, ErrFileWrite) {
		t.Fatalf("Expected ErrFileWrite, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, found %d entries", len(entries))
	}
}

func TestDrivers(t *testing.T) {
	drv, err := NewDriver("tiff", Options{})
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	if !drv.Match("scene.TIF") || drv.Match("scene.png") {
		t.Error("Unexpected Match result")
	}
	if _, err := NewDriver("nope", Options{}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestTIFFWorldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.tif")
	drv := NewTIFF(Options{}, false)
	if err := drv.Create(path, []*Plane{gradient(6, 4, 1)}, Uint8); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ds, err := drv.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := GeoTransformOf(ds); ok {
		t.Error("Expected no transform without a world file")
	}

	g := tile.GeoTransform{300000, 30, 0, 5000000, 0, -30}
	if err := tile.WriteWorldFile(tile.WorldFilePath(path), g); err != nil {
		t.Fatal(err)
	}
	ds, err = drv.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sel, err := Select(ds, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := GeoTransformOf(sel)
	if !ok || got != g {
		t.Errorf("Expected %v through the selection, got %v (%v)", g, got, ok)
	}
}

func TestTIFFBadWorldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.tiff")
	if err := NewTIFF(Options{}, false).Create(path, []*Plane{gradient(2, 2, 1)}, Uint8); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scene.tfw"), []byte("1\n2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewTIFF(Options{}, false).Open(path); err != nil {
		t.Errorf("Lenient driver should ignore a broken world file, got %v", err)
	}
	if _, err := NewTIFF(Options{Strict: true}, false).Open(path); !errors.Is(err, ErrRasterOpen) {
		t.Errorf("Strict driver should reject a broken world file, got %v", err)
	}
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []DataType{Uint8, Uint16, Float32} {
		got, err := ParseDataType(dt.String())
		if err != nil || got != dt {
			t.Errorf("ParseDataType(%q) = %v, %v", dt.String(), got, err)
		}
	}
	if _, err := ParseDataType("int8"); err == nil {
		t.Error("Expected error for unknown type")
	}
}
