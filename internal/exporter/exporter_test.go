package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kiesman99/rstile/internal/progress"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/pkg/tile"
)

// source returns a width x height raster whose samples are their
// one-based column, so tile contents can be checked
func source(t *testing.T, width, height int) raster.Raster {
	t.Helper()
	p := raster.NewPlane(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p.Set(x, y, float64(x+1))
		}
	}
	ds, err := raster.NewMemory(raster.Uint16, p)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	return ds
}

type recorder struct {
	mu      sync.Mutex
	reports [][2]int
}

func (r *recorder) Report(completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, [2]int{completed, total})
}

func TestExportContiguousGrid(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tiles")
	src := source(t, 100, 100)
	rec := &recorder{}
	drv := raster.NewTIFF(raster.Options{}, true)

	result, err := New(drv, Options{Workers: 3, Progress: rec}).
		Export(context.Background(), src, tile.GridSpec{BlockWidth: 50, BlockHeight: 50}, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.Count() != 4 || result.Columns != 2 || result.Rows != 2 {
		t.Fatalf("Expected 2x2 tiles, got %d (%dx%d)", result.Count(), result.Columns, result.Rows)
	}

	for i, w := range result.Windows {
		path := filepath.Join(dir, fmt.Sprintf("%04d.tiff", i))
		if result.Files[i] != path {
			t.Errorf("Tile %d written to %s, expected %s", i, result.Files[i], path)
		}

		ds, err := drv.Open(path)
		if err != nil {
			t.Fatalf("Open tile %d failed: %v", i, err)
		}
		p, err := raster.ReadBand(ds, 0)
		if err != nil {
			t.Fatalf("ReadBand failed: %v", err)
		}
		if p.Width != 50 || p.Height != 50 {
			t.Errorf("Tile %d is %dx%d", i, p.Width, p.Height)
		}
		if got, want := p.At(0, 0), float64(w.X+1); got != want {
			t.Errorf("Tile %d starts with %v, expected %v", i, got, want)
		}
		ds.Close()
	}

	if len(rec.reports) != 4 {
		t.Fatalf("Expected 4 progress reports, got %d", len(rec.reports))
	}
	for i, r := range rec.reports {
		if r[0] != i+1 || r[1] != 4 {
			t.Errorf("Report %d was %v", i, r)
		}
	}
}

func TestExportOverhangingWindow(t *testing.T) {
	dir := t.TempDir()
	src := source(t, 100, 100)
	drv := raster.NewTIFF(raster.Options{}, false)

	// Overlap 12, stride 48, so the last window starts at 48 and overhangs by 8
	spec := tile.GridSpec{BlockWidth: 60, BlockHeight: 60, OverlapPercent: 20}
	result, err := New(drv, Options{}).Export(context.Background(), src, spec, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Count() != 4 {
		t.Fatalf("Expected 4 tiles, got %d", result.Count())
	}

	last := result.Windows[3]
	if last.X != 48 || last.Y != 48 {
		t.Fatalf("Unexpected last window %+v", last)
	}

	ds, err := drv.Open(result.Files[3])
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ds.Close()
	p, err := raster.ReadBand(ds, 0)
	if err != nil {
		t.Fatalf("ReadBand failed: %v", err)
	}
	if p.Width != 60 || p.Height != 60 {
		t.Fatalf("Expected padded 60x60 tile, got %dx%d", p.Width, p.Height)
	}
	if got := p.At(51, 0); got != 100 {
		t.Errorf("Expected last source column (100) at x=51, got %v", got)
	}
	if got := p.At(52, 0); got != 0 {
		t.Errorf("Expected zero padding at x=52, got %v", got)
	}
	if got := p.At(0, 59); got != 0 {
		t.Errorf("Expected zero padding at y=59, got %v", got)
	}
}

func TestExportInvalidSpec(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	_, err := New(raster.NewTIFF(raster.Options{}, false), Options{}).
		Export(context.Background(), source(t, 10, 10), tile.GridSpec{BlockWidth: 4, BlockHeight: 4, OverlapPercent: 100}, dir)
	if !errors.Is(err, tile.ErrInvalidGridSpec) {
		t.Fatalf("Expected ErrInvalidGridSpec, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Output directory should not be created for an invalid spec")
	}
}

func TestExportEmptyGrid(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	rec := &recorder{}
	result, err := New(raster.NewTIFF(raster.Options{}, false), Options{Progress: rec}).
		Export(context.Background(), source(t, 10, 10), tile.GridSpec{BlockWidth: 20, BlockHeight: 20}, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Count() != 0 {
		t.Errorf("Expected no tiles, got %d", result.Count())
	}
	if len(rec.reports) != 0 {
		t.Errorf("Expected no progress, got %v", rec.reports)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("Expected output directory to exist: %v", err)
	}
}

func TestExportExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	exp := New(raster.NewTIFF(raster.Options{}, false), Options{})
	spec := tile.GridSpec{BlockWidth: 5, BlockHeight: 5}
	for i := 0; i < 2; i++ {
		if _, err := exp.Export(context.Background(), source(t, 10, 10), spec, dir); err != nil {
			t.Fatalf("Export %d failed: %v", i, err)
		}
	}
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(raster.NewTIFF(raster.Options{}, false), Options{Workers: 1}).
		Export(ctx, source(t, 40, 40), tile.GridSpec{BlockWidth: 10, BlockHeight: 10}, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestExportCancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := progress.Func(func(completed, total int) {
		if completed == 3 {
			cancel()
		}
	})

	dir := t.TempDir()
	_, err := New(raster.NewTIFF(raster.Options{}, false), Options{Workers: 1, Progress: rec}).
		Export(ctx, source(t, 40, 40), tile.GridSpec{BlockWidth: 10, BlockHeight: 10}, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) >= 16 {
		t.Errorf("Expected the export to stop early, found %d files", len(entries))
	}
}

func TestExportWriteFailure(t *testing.T) {
	// A file where the output directory should be
	dir := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(dir, nil, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := New(raster.NewTIFF(raster.Options{}, false), Options{}).
		Export(context.Background(), source(t, 10, 10), tile.GridSpec{BlockWidth: 5, BlockHeight: 5}, dir)
	if !errors.Is(err, raster.ErrFileWrite) {
		t.Fatalf("Expected ErrFileWrite, got %v", err)
	}
}

func TestExportUnwritableTile(t *testing.T) {
	// Two bands cannot be stored by the tiff driver
	a, b := raster.NewPlane(10, 10), raster.NewPlane(10, 10)
	src, _ := raster.NewMemory(raster.Uint8, a, b)

	dir := t.TempDir()
	_, err := New(raster.NewTIFF(raster.Options{}, false), Options{}).
		Export(context.Background(), src, tile.GridSpec{BlockWidth: 5, BlockHeight: 5}, dir)

	var tileErr *TileError
	if !errors.As(err, &tileErr) {
		t.Fatalf("Expected *TileError, got %v", err)
	}
	if !errors.Is(err, raster.ErrFileWrite) {
		t.Errorf("Expected ErrFileWrite in chain, got %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no partial files, found %d", len(entries))
	}
}

func TestExportManifest(t *testing.T) {
	dir := t.TempDir()
	spec := tile.GridSpec{BlockWidth: 8, BlockHeight: 8, OverlapPercent: 25, Policy: tile.PadOrClip}
	result, err := New(raster.NewTIFF(raster.Options{}, false), Options{Manifest: true}).
		Export(context.Background(), source(t, 20, 14), spec, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	m, err := ReadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if got, err := m.Spec(); err != nil || got != spec {
		t.Errorf("Manifest spec is %+v (%v), expected %+v", got, err, spec)
	}
	if m.Source.Width != 20 || m.Source.Height != 14 || m.Source.DataType != "uint16" {
		t.Errorf("Unexpected source %+v", m.Source)
	}
	if m.Source.GeoTransform != nil {
		t.Errorf("Expected no geotransform, got %v", *m.Source.GeoTransform)
	}
	windows := m.Windows()
	if len(windows) != result.Count() {
		t.Fatalf("Manifest lists %d tiles, export wrote %d", len(windows), result.Count())
	}
	for i, w := range windows {
		if w != result.Windows[i] {
			t.Errorf("Manifest window %d is %+v, expected %+v", i, w, result.Windows[i])
		}
	}
}

func TestExportWorldFiles(t *testing.T) {
	src, err := raster.NewMemory(raster.Uint8, raster.NewPlane(30, 20))
	if err != nil {
		t.Fatal(err)
	}
	g := tile.GeoTransform{1000, 2, 0, 9000, 0, -2}
	src.SetGeoTransform(g)

	dir := t.TempDir()
	drv := raster.NewTIFF(raster.Options{}, false)
	result, err := New(drv, Options{WorldFile: true, Manifest: true}).
		Export(context.Background(), src, tile.GridSpec{BlockWidth: 10, BlockHeight: 10}, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Tile 4 is column 2, row 0 in column-major order
	w := result.Windows[4]
	if w.X != 20 || w.Y != 0 {
		t.Fatalf("Unexpected window %+v", w)
	}
	got, err := tile.ReadWorldFile(tile.WorldFilePath(result.Files[4]))
	if err != nil {
		t.Fatalf("ReadWorldFile failed: %v", err)
	}
	if want := (tile.GeoTransform{1040, 2, 0, 9000, 0, -2}); got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// The tile reads back in place
	ds, err := drv.Open(result.Files[4])
	if err != nil {
		t.Fatal(err)
	}
	if back, ok := raster.GeoTransformOf(ds); !ok || back != got {
		t.Errorf("Reopened tile has transform %v (%v)", back, ok)
	}

	m, err := ReadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if m.Source.GeoTransform == nil || *m.Source.GeoTransform != g {
		t.Errorf("Manifest transform %v, expected %v", m.Source.GeoTransform, g)
	}
}

func TestExportWorldFilesUngeoreferenced(t *testing.T) {
	dir := t.TempDir()
	result, err := New(raster.NewTIFF(raster.Options{}, false), Options{WorldFile: true}).
		Export(context.Background(), source(t, 10, 10), tile.GridSpec{BlockWidth: 10, BlockHeight: 10}, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if _, err := os.Stat(tile.WorldFilePath(result.Files[0])); !os.IsNotExist(err) {
		t.Errorf("Expected no world file for a raster without transform, got %v", err)
	}
}
