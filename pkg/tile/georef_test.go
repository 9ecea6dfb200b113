package tile

import (
	"math"
	"path/filepath"
	"testing"
)

func TestGeoTransformWindow(t *testing.T) {
	g := GeoTransform{500000, 10, 0, 4200000, 0, -10}
	w := Window{Index: 3, X: 480, Y: 960, Width: 600, Height: 600}

	got := g.Window(w)
	want := GeoTransform{504800, 10, 0, 4190400, 0, -10}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestWorldFilePath(t *testing.T) {
	tests := map[string]string{
		"tiles/0003.tiff": "tiles/0003.tfw",
		"tiles/0003.tif":  "tiles/0003.tfw",
		"png/0003.png":    "png/0003.pgw",
		"a.JPG":           "a.jgw",
		"raw":             "raw.wld",
	}
	for in, want := range tests {
		if got := WorldFilePath(in); got != want {
			t.Errorf("WorldFilePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorldFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0000.tfw")
	g := GeoTransform{-122.5, 0.25, 0.01, 37.8, -0.02, -0.25}

	if err := WriteWorldFile(path, g); err != nil {
		t.Fatalf("WriteWorldFile failed: %v", err)
	}
	got, err := ReadWorldFile(path)
	if err != nil {
		t.Fatalf("ReadWorldFile failed: %v", err)
	}
	for i := range g {
		if math.Abs(got[i]-g[i]) > 1e-9 {
			t.Errorf("Coefficient %d: expected %v, got %v", i, g[i], got[i])
		}
	}
}

func TestReadWorldFileErrors(t *testing.T) {
	if _, err := ReadWorldFile(filepath.Join(t.TempDir(), "missing.tfw")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
