package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kiesman99/rstile/internal/progress"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/pkg/tile"
)

// ManifestName is the file written next to the tiles when Options.Manifest is set
const ManifestName = "manifest.yaml"

// Options contains the export parameters that are not part of the grid
type Options struct {
	// Workers bounds the number of tiles read and written at once.
	// Zero means runtime.NumCPU().
	Workers int
	// Manifest writes ManifestName listing every tile and its window
	Manifest bool
	// Progress receives one report per written tile
	Progress progress.Reporter
	// WorldFile writes a world file next to every tile when the source
	// is georeferenced
	WorldFile bool
}

// Result describes a finished export
type Result struct {
	Dir     string
	Columns int
	Rows    int
	Windows []tile.Window
	Files   []string
}

// Count returns the number of tiles written
func (r *Result) Count() int {
	return len(r.Files)
}

// TileError reports the tile an export stopped on
type TileError struct {
	Window tile.Window
	Path   string
	Err    error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d at (%d,%d): %v", e.Window.Index, e.Window.X, e.Window.Y, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// Exporter cuts a raster into tile files
type Exporter struct {
	driver raster.Driver
	opts   Options
}

// New creates an exporter writing tiles with driver
func New(driver raster.Driver, opts Options) *Exporter {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}
	return &Exporter{driver: driver, opts: opts}
}

// Export lays spec over src and writes every window to outDir as
// NNNN<ext>, NNNN being the zero padded window index. outDir is created if
// needed. A grid with no windows is not an error; the result is empty.
//
// Windows reaching past the source are read up to the source edge and the
// rest of the tile is zero filled.
func (e *Exporter) Export(ctx context.Context, src raster.Raster, spec tile.GridSpec, outDir string) (*Result, error) {
	windows, err := tile.Compute(src.Width(), src.Height(), spec)
	if err != nil {
		return nil, err
	}
	cols, rows, _ := spec.Dimensions(src.Width(), src.Height())

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("%w %s: %v", raster.ErrFileWrite, outDir, err)
	}

	result := &Result{
		Dir:     outDir,
		Columns: cols,
		Rows:    rows,
		Windows: windows,
		Files:   make([]string, len(windows)),
	}

	tracker := progress.NewTracker(e.opts.Progress, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, w := range windows {
		if gctx.Err() != nil {
			break
		}
		path := filepath.Join(outDir, w.Name(e.driver.Ext()))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.exportTile(src, w, path); err != nil {
				return &TileError{Window: w, Path: path, Err: err}
			}
			result.Files[w.Index] = path
			tracker.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that landed after the last tile was scheduled
	if err := ctx.Err(); err != nil && tracker.Completed() < len(windows) {
		return nil, err
	}

	if e.opts.Manifest {
		if err := writeManifest(filepath.Join(outDir, ManifestName), src, spec, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (e *Exporter) exportTile(src raster.Raster, w tile.Window, path string) error {
	clip := w.Clip(src.Width(), src.Height())
	planes, err := raster.ReadAll(src, clip)
	if err != nil {
		return err
	}
	for i, p := range planes {
		planes[i] = p.Extend(w.Width, w.Height)
	}
	if err := e.driver.Create(path, planes, src.DataType()); err != nil {
		return err
	}

	if !e.opts.WorldFile {
		return nil
	}
	g, ok := raster.GeoTransformOf(src)
	if !ok {
		return nil
	}
	if err := tile.WriteWorldFile(tile.WorldFilePath(path), g.Window(w)); err != nil {
		return fmt.Errorf("%w %s: %v", raster.ErrFileWrite, tile.WorldFilePath(path), err)
	}
	return nil
}

// Manifest is the YAML layout of ManifestName
type Manifest struct {
	Source Source       `yaml:"source"`
	Grid   Grid         `yaml:"grid"`
	Tiles  []TileRecord `yaml:"tiles"`
}

// Source describes the raster a grid was cut from
type Source struct {
	Width        int                `yaml:"width"`
	Height       int                `yaml:"height"`
	Bands        int                `yaml:"bands"`
	DataType     string             `yaml:"data_type"`
	GeoTransform *tile.GeoTransform `yaml:"geotransform,omitempty"`
}

// Grid records the spec and resulting layout
type Grid struct {
	BlockWidth     int    `yaml:"block_width"`
	BlockHeight    int    `yaml:"block_height"`
	OverlapPercent int    `yaml:"overlap_percent"`
	Policy         string `yaml:"policy"`
	Columns        int    `yaml:"columns"`
	Rows           int    `yaml:"rows"`
}

// TileRecord is one written tile. File is relative to the manifest.
type TileRecord struct {
	File        string `yaml:"file"`
	tile.Window `yaml:",inline"`
}

// Windows returns the tile windows in index order
func (m *Manifest) Windows() []tile.Window {
	windows := make([]tile.Window, len(m.Tiles))
	for i, t := range m.Tiles {
		windows[i] = t.Window
	}
	return windows
}

// Spec returns the grid spec the tiles were cut with
func (m *Manifest) Spec() (tile.GridSpec, error) {
	policy, err := tile.ParsePolicy(m.Grid.Policy)
	if err != nil {
		return tile.GridSpec{}, err
	}
	return tile.GridSpec{
		BlockWidth:     m.Grid.BlockWidth,
		BlockHeight:    m.Grid.BlockHeight,
		OverlapPercent: m.Grid.OverlapPercent,
		Policy:         policy,
	}, nil
}

func writeManifest(path string, src raster.Raster, spec tile.GridSpec, result *Result) error {
	m := Manifest{
		Source: Source{
			Width:    src.Width(),
			Height:   src.Height(),
			Bands:    src.BandCount(),
			DataType: src.DataType().String(),
		},
		Grid: Grid{
			BlockWidth:     spec.BlockWidth,
			BlockHeight:    spec.BlockHeight,
			OverlapPercent: spec.OverlapPercent,
			Policy:         spec.Policy.String(),
			Columns:        result.Columns,
			Rows:           result.Rows,
		},
	}
	if g, ok := raster.GeoTransformOf(src); ok {
		m.Source.GeoTransform = &g
	}
	for i, w := range result.Windows {
		m.Tiles = append(m.Tiles, TileRecord{File: filepath.Base(result.Files[i]), Window: w})
	}

	return raster.WriteFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&m); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadManifest loads a manifest written by Export
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}
