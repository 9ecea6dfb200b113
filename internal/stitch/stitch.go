// Package stitch puts tiles written by the exporter back together into one
// raster of the source size, using the manifest to place every tile.
package stitch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kiesman99/rstile/internal/exporter"
	"github.com/kiesman99/rstile/internal/progress"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/pkg/tile"
)

// DefaultMaxPixels caps the size of a raster held in memory
const DefaultMaxPixels = 20000 * 20000

// ErrTooLarge is returned when the source is bigger than Options.MaxPixels
var ErrTooLarge = errors.New("reassembled raster too large")

// ErrTilePath is recorded for a manifest entry that names anything but a
// file in the manifest's own directory
var ErrTilePath = errors.New("tile must be a file next to the manifest")

// Options contains all stitching parameters
type Options struct {
	// Progress receives one report per placed or failed tile
	Progress progress.Reporter
	// WorldFile writes a world file next to the output when the manifest
	// records a transform
	WorldFile bool
	// MaxPixels is the largest width*height accepted. Zero means DefaultMaxPixels.
	MaxPixels int64
}

// Result describes the written raster
type Result struct {
	Output string
	Width  int
	Height int
	Bands  int
	Tiles  int
}

// TileError lists the tiles that could not be placed. Nothing is written
// when it is returned.
type TileError struct {
	Failed          []FailedTile
	SuccessfulTiles int
	TotalTiles      int
}

func (e *TileError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, fmt.Sprintf("%s: %v", f.File, f.Err))
	}
	return fmt.Sprintf("%d of %d tiles failed: %s", len(e.Failed), e.TotalTiles, strings.Join(msgs, "; "))
}

// FailedTile represents a single tile that could not be placed
type FailedTile struct {
	File string
	Err  error
}

// Stitcher reassembles clipped tiles
type Stitcher struct {
	driver raster.Driver
	opts   Options
}

// New creates a stitcher reading tiles and writing the raster with driver
func New(driver raster.Driver, opts Options) *Stitcher {
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Stitcher{driver: driver, opts: opts}
}

// Stitch reads the manifest at manifestPath, places every listed tile at
// its window and writes the raster to output. Where tiles overlap the later
// tile wins; with the drop policy the uncovered right and bottom edges are
// zero. Padding outside the source is discarded.
func (s *Stitcher) Stitch(ctx context.Context, manifestPath, output string) (*Result, error) {
	m, err := exporter.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	width, height, bands := m.Source.Width, m.Source.Height, m.Source.Bands
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, fmt.Errorf("manifest %s: invalid source %dx%d with %d bands", manifestPath, width, height, bands)
	}
	if dim := int64(width) * int64(height); dim > s.opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, width, height, s.opts.MaxPixels)
	}
	dt, err := raster.ParseDataType(m.Source.DataType)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", manifestPath, err)
	}

	planes := make([]*raster.Plane, bands)
	for b := range planes {
		planes[b] = raster.NewPlane(width, height)
	}

	dir := filepath.Dir(manifestPath)
	tracker := progress.NewTracker(s.opts.Progress, len(m.Tiles))
	tileErr := &TileError{TotalTiles: len(m.Tiles)}

	for _, t := range m.Tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if t.File == "" || t.File == "." || t.File == ".." || filepath.Base(t.File) != t.File {
			tileErr.Failed = append(tileErr.Failed, FailedTile{File: t.File, Err: ErrTilePath})
			tracker.Done()
			continue
		}

		path := filepath.Join(dir, t.File)
		if err := s.place(planes, path, t.Window); err != nil {
			tileErr.Failed = append(tileErr.Failed, FailedTile{File: t.File, Err: err})
		} else {
			tileErr.SuccessfulTiles++
		}
		tracker.Done()
	}

	if len(tileErr.Failed) > 0 {
		return nil, tileErr
	}

	if err := s.driver.Create(output, planes, dt); err != nil {
		return nil, err
	}
	if s.opts.WorldFile && m.Source.GeoTransform != nil {
		if err := tile.WriteWorldFile(tile.WorldFilePath(output), *m.Source.GeoTransform); err != nil {
			return nil, fmt.Errorf("%w %s: %v", raster.ErrFileWrite, tile.WorldFilePath(output), err)
		}
	}

	return &Result{
		Output: output,
		Width:  width,
		Height: height,
		Bands:  bands,
		Tiles:  tileErr.SuccessfulTiles,
	}, nil
}

// place copies the tile at path into planes at w, skipping pixels outside
// the raster
func (s *Stitcher) place(planes []*raster.Plane, path string, w tile.Window) error {
	ds, err := s.driver.Open(path)
	if err != nil {
		return err
	}
	defer ds.Close()

	if ds.Width() != w.Width || ds.Height() != w.Height {
		return fmt.Errorf("tile is %dx%d, manifest says %dx%d", ds.Width(), ds.Height(), w.Width, w.Height)
	}
	// Three band tiles read back with an extra alpha band
	if ds.BandCount() < len(planes) {
		return fmt.Errorf("%w: tile has %d bands, source had %d", raster.ErrBandCountMismatch, ds.BandCount(), len(planes))
	}

	outW, outH := planes[0].Width, planes[0].Height
	for b, dst := range planes {
		src, err := raster.ReadBand(ds, b)
		if err != nil {
			return err
		}
		for y := 0; y < src.Height; y++ {
			yd := y + w.Y
			if yd < 0 || yd >= outH {
				continue
			}
			for x := 0; x < src.Width; x++ {
				xd := x + w.X
				if xd < 0 || xd >= outW {
					continue
				}
				dst.Pix[yd*outW+xd] = src.Pix[y*src.Width+x]
			}
		}
	}
	return nil
}
