//go:build gdal

// Package gdal registers a raster driver backed by GDAL. It reads every
// format and sample type GDAL knows and writes GeoTIFF tiles that keep the
// source band count. Build with -tags gdal.
//
// A GDAL dataset handle is not safe for concurrent use, so each dataset
// serialises its reads. Parallel exports still overlap tile encoding and
// writing.
package gdal

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/pkg/tile"
)

func init() {
	godal.RegisterAll()
	raster.Register("gdal", func(opts raster.Options) raster.Driver {
		return New(opts)
	})
}

// Driver opens anything GDAL can read and creates GTiff files
type Driver struct {
	opts raster.Options
}

// New returns a GDAL driver with the given error policy
func New(opts raster.Options) *Driver {
	return &Driver{opts: opts}
}

// errorHandler routes GDAL diagnostics through the driver options instead
// of the process wide handler
func (d *Driver) errorHandler() godal.ErrorHandler {
	return func(ec godal.ErrorCategory, code int, msg string) error {
		switch {
		case ec > godal.CE_Warning:
			return fmt.Errorf("gdal error %d: %s", code, msg)
		case ec == godal.CE_Warning && d.opts.Strict:
			return fmt.Errorf("gdal warning %d: %s", code, msg)
		case ec == godal.CE_Warning && d.opts.Logger != nil:
			d.opts.Logger.Printf("gdal warning %d: %s", code, msg)
		}
		return nil
	}
}

func (d *Driver) Ext() string { return ".tiff" }

var extensions = map[string]bool{
	".tif": true, ".tiff": true, ".img": true, ".jp2": true,
	".vrt": true, ".nc": true, ".hdf": true, ".png": true,
}

// Match accepts the extensions of common raster containers
func (d *Driver) Match(name string) bool {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

func (d *Driver) Open(path string) (raster.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(d.errorHandler()))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", raster.ErrRasterOpen, path, err)
	}
	st := ds.Structure()
	if st.NBands == 0 {
		ds.Close()
		return nil, fmt.Errorf("%w %s: no bands", raster.ErrRasterOpen, path)
	}
	return &dataset{ds: ds, st: st, eh: d.errorHandler()}, nil
}

func (d *Driver) Create(path string, planes []*raster.Plane, dt raster.DataType) error {
	if len(planes) == 0 {
		return fmt.Errorf("%w %s: no bands to write", raster.ErrFileWrite, path)
	}
	w, h := planes[0].Width, planes[0].Height

	var gdt godal.DataType
	switch dt {
	case raster.Uint8:
		gdt = godal.Byte
	case raster.Uint16:
		gdt = godal.UInt16
	default:
		gdt = godal.Float32
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	out, err := godal.Create(godal.GTiff, tmp, len(planes), gdt, w, h,
		godal.CreationOption("COMPRESS=DEFLATE"), godal.ErrLogger(d.errorHandler()))
	if err != nil {
		return fmt.Errorf("%w %s: %v", raster.ErrFileWrite, path, err)
	}

	bands := out.Bands()
	for i, p := range planes {
		if err := bands[i].Write(0, 0, p.Pix, w, h); err != nil {
			out.Close()
			os.Remove(tmp)
			return fmt.Errorf("%w %s: band %d: %v", raster.ErrFileWrite, path, i+1, err)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w %s: %v", raster.ErrFileWrite, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w %s: %v", raster.ErrFileWrite, path, err)
	}
	return nil
}

type dataset struct {
	st godal.DatasetStructure
	eh godal.ErrorHandler

	mu sync.Mutex // guards ds
	ds *godal.Dataset
}

var (
	_ raster.Dataset       = (*dataset)(nil)
	_ raster.Georeferenced = (*dataset)(nil)
)

func (d *dataset) Width() int     { return d.st.SizeX }
func (d *dataset) Height() int    { return d.st.SizeY }
func (d *dataset) BandCount() int { return d.st.NBands }

func (d *dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ds.Close()
}

// GeoTransform reports false for datasets GDAL has no transform for
func (d *dataset) GeoTransform() (tile.GeoTransform, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	gt, err := d.ds.GeoTransform()
	if err != nil {
		return tile.GeoTransform{}, false
	}
	return tile.GeoTransform(gt), true
}

func (d *dataset) DataType() raster.DataType {
	switch d.st.DataType {
	case godal.Byte:
		return raster.Uint8
	case godal.UInt16:
		return raster.Uint16
	default:
		return raster.Float32
	}
}

func (d *dataset) ReadWindow(band int, r image.Rectangle) (*raster.Plane, error) {
	if err := raster.CheckWindow(d, band, r); err != nil {
		return nil, err
	}
	out := raster.NewPlane(r.Dx(), r.Dy())

	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.ds.Bands()[band]
	if err := b.Read(r.Min.X, r.Min.Y, out.Pix, out.Width, out.Height, godal.ErrLogger(d.eh)); err != nil {
		return nil, fmt.Errorf("read band %d window %v: %w", band+1, r, err)
	}
	return out, nil
}
