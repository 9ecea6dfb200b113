// Package normalize converts a directory of rasters into 8-bit PNG images
// with one percentile stretch shared by the whole batch.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/rstile/internal/progress"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/internal/stretch"
	"github.com/kiesman99/rstile/pkg/tile"
)

// OutputExt is the extension of normalised images
const OutputExt = ".png"

// ErrDuplicateOutput is returned for an input whose output name was
// already claimed by an earlier input, e.g. a.tif and a.tiff
var ErrDuplicateOutput = errors.New("duplicate output name")

// Options configures a batch
type Options struct {
	// Bands is the zero-based band order read from every raster. Nil uses
	// raster.DefaultBandOrder of the reference.
	Bands []int
	// Stretch selects the reference percentiles. The zero value means 2/98.
	Stretch stretch.Spec
	// Workers bounds the number of files converted at once.
	// Zero means runtime.NumCPU().
	Workers int
	// Progress receives one report per input file, converted or skipped
	Progress progress.Reporter
	// Logger receives a line per skipped file. Nil discards.
	Logger *log.Logger
	// WorldFile writes <name>.pgw next to each image whose input is
	// georeferenced
	WorldFile bool
}

// Skip records an input that was not converted
type Skip struct {
	File string
	Err  error
}

// Result summarises a batch
type Result struct {
	Bands    []int
	Extremum []stretch.Extremum
	Written  []string
	Skipped  []Skip
}

// Normalizer applies a shared reference stretch to many rasters
type Normalizer struct {
	driver raster.Driver
	opts   Options
}

// New creates a normalizer reading rasters with driver
func New(driver raster.Driver, opts Options) *Normalizer {
	if opts.Stretch == (stretch.Spec{}) {
		opts.Stretch = stretch.DefaultSpec
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}
	return &Normalizer{driver: driver, opts: opts}
}

// Reference opens the reference raster and computes the extremum of the
// selected bands. It returns the band order it used.
func (n *Normalizer) Reference(path string) ([]stretch.Extremum, []int, error) {
	ds, err := n.driver.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	bands := n.opts.Bands
	if bands == nil {
		bands = raster.DefaultBandOrder(ds.BandCount())
	}
	sel, err := raster.Select(ds, bands)
	if err != nil {
		return nil, nil, fmt.Errorf("reference %s: %w", path, err)
	}

	extremum, err := n.opts.Stretch.ComputeExtremum(sel)
	if err != nil {
		return nil, nil, fmt.Errorf("reference %s: %w", path, err)
	}
	return extremum, bands, nil
}

// Normalize computes the reference extremum once, then stretches every
// raster in inputDir into outputDir/<name>.png. Inputs are processed in
// lexical order. A file that fails is recorded in Result.Skipped and the
// batch continues; only reference, listing and context errors are returned.
func (n *Normalizer) Normalize(ctx context.Context, referencePath, inputDir, outputDir string) (*Result, error) {
	extremum, bands, err := n.Reference(referencePath)
	if err != nil {
		return nil, err
	}

	inputs, err := ListInputs(n.driver, inputDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w %s: %v", raster.ErrFileWrite, outputDir, err)
	}

	outputs := make([]string, len(inputs))
	errs := make([]error, len(inputs))
	claimed := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		outputs[i] = filepath.Join(outputDir, OutputName(in))
		if claimed[outputs[i]] {
			errs[i] = fmt.Errorf("%w: %s", ErrDuplicateOutput, filepath.Base(outputs[i]))
		}
		claimed[outputs[i]] = true
	}

	tracker := progress.NewTracker(n.opts.Progress, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.opts.Workers)

	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if errs[i] == nil {
				errs[i] = n.convert(in, outputs[i], bands, extremum)
			}
			if errs[i] != nil && n.opts.Logger != nil {
				n.opts.Logger.Printf("skipping %s: %v", in, errs[i])
			}
			tracker.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil && tracker.Completed() < len(inputs) {
		return nil, err
	}

	result := &Result{Bands: bands, Extremum: extremum}
	for i, in := range inputs {
		if errs[i] != nil {
			result.Skipped = append(result.Skipped, Skip{File: in, Err: errs[i]})
			continue
		}
		result.Written = append(result.Written, outputs[i])
	}
	return result, nil
}

func (n *Normalizer) convert(in, out string, bands []int, extremum []stretch.Extremum) error {
	ds, err := n.driver.Open(in)
	if err != nil {
		return err
	}
	defer ds.Close()

	sel, err := raster.Select(ds, bands)
	if err != nil {
		return err
	}
	img, err := stretch.Apply(sel, extremum)
	if err != nil {
		return err
	}
	if err := raster.WritePNG(out, img); err != nil {
		return err
	}

	if !n.opts.WorldFile {
		return nil
	}
	if g, ok := raster.GeoTransformOf(ds); ok {
		if err := tile.WriteWorldFile(tile.WorldFilePath(out), g); err != nil {
			return fmt.Errorf("%w %s: %v", raster.ErrFileWrite, tile.WorldFilePath(out), err)
		}
	}
	return nil
}

// OutputName returns the PNG file name for an input raster
func OutputName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + OutputExt
}

// ListInputs returns the regular files of dir the driver can read, sorted
// by name
func ListInputs(driver raster.Driver, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var inputs []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || !driver.Match(e.Name()) {
			continue
		}
		inputs = append(inputs, filepath.Join(dir, e.Name()))
	}
	sort.Strings(inputs)
	return inputs, nil
}
