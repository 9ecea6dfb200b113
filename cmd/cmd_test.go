package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/internal/stretch"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("rstile %s failed: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestClipConvertStats(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.tif")

	planes := make([]*raster.Plane, 3)
	for b := range planes {
		planes[b] = raster.NewPlane(90, 70)
		for i := range planes[b].Pix {
			planes[b].Pix[i] = float64(i*(b+1)) + 100
		}
	}
	if err := raster.NewTIFF(raster.Options{}, false).Create(scene, planes, raster.Uint16); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tiles := filepath.Join(dir, "tiles")
	out := run(t, "clip", "--quiet", "--input", scene, "--output", tiles,
		"--width", "40", "--height", "40", "--overlap", "25", "--manifest")
	// stride 30: 3 columns x 2 rows
	if !strings.Contains(out, "(3 columns x 2 rows)") {
		t.Errorf("Unexpected clip output %q", out)
	}
	if _, err := os.Stat(filepath.Join(tiles, "0005.tiff")); err != nil {
		t.Errorf("Expected last tile: %v", err)
	}

	restored := filepath.Join(dir, "restored.tiff")
	out = run(t, "stitch", "--quiet", "--manifest", filepath.Join(tiles, "manifest.yaml"), "--output", restored)
	// The restored raster keeps the source size
	if !strings.Contains(out, "Wrote 90x70 raster") {
		t.Errorf("Unexpected stitch output %q", out)
	}

	pngs := filepath.Join(dir, "png")
	out = run(t, "convert", "--quiet", "--reference", scene, "--input-dir", tiles, "--output-dir", pngs)
	if !strings.Contains(out, "bands 3,2,1") {
		t.Errorf("Unexpected convert output %q", out)
	}
	entries, err := os.ReadDir(pngs)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 6 {
		t.Errorf("Expected 6 PNG files, got %d", len(entries))
	}

	out = run(t, "stats", scene, "--bands", "1", "--format", "json")
	var stats []stretch.BandStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("Failed to decode stats %q: %v", out, err)
	}
	if len(stats) != 1 || stats[0].Band != 1 || stats[0].Min != 100 || stats[0].Valid != 90*70 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestDriverWarningsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	dir := t.TempDir()
	scene := filepath.Join(dir, "scene.tif")
	if err := raster.NewTIFF(raster.Options{}, false).Create(scene, []*raster.Plane{raster.NewPlane(4, 4)}, raster.Uint8); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scene.tfw"), []byte("not a world file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	drv, err := newDriver()
	if err != nil {
		t.Fatalf("newDriver failed: %v", err)
	}
	ds, err := drv.Open(scene)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ds.Close()

	if !strings.HasPrefix(buf.String(), "tiff: ") || !strings.Contains(buf.String(), "ignoring world file") {
		t.Errorf("Expected prefixed driver warning, got %q", buf.String())
	}
}

func TestServeDescribesEndpoints(t *testing.T) {
	for _, want := range []string{"/api/v1/clip", "/api/v1/convert", "/api/v1/stitch", "--root", "--cors-origin"} {
		if !strings.Contains(serveCmd.Long, want) {
			t.Errorf("serve help does not mention %s", want)
		}
	}
	if !strings.Contains(serveCmd.Short, "stitch") {
		t.Errorf("Unexpected short description %q", serveCmd.Short)
	}
	for _, name := range []string{"root", "cors-origin"} {
		if serveCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag", name)
		}
	}
}
