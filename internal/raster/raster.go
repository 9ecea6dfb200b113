// Package raster is the windowed raster I/O layer. A Driver opens datasets
// from disk and writes new ones; a Dataset hands out single-band windows of
// samples as float64 planes so the tiling and stretching code never depends
// on the container format.
package raster

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math"
)

var (
	// ErrRasterOpen is returned when a file is missing, unreadable,
	// unsupported or has no bands
	ErrRasterOpen = errors.New("cannot open raster")
	// ErrWindowOutOfBounds is returned for a read that is not fully inside the raster
	ErrWindowOutOfBounds = errors.New("window out of bounds")
	// ErrBandOutOfRange is returned for a band index outside [0, BandCount)
	ErrBandOutOfRange = errors.New("band out of range")
	// ErrBandCountMismatch is returned when a raster lacks the bands a caller needs
	ErrBandCountMismatch = errors.New("band count mismatch")
	// ErrFileWrite is returned when an output file cannot be written
	ErrFileWrite = errors.New("cannot write file")
)

// DataType is the storage type of a band's samples
type DataType int

// Sample types
const (
	Uint8 DataType = iota
	Uint16
	Float32
)

func (t DataType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// ParseDataType is the inverse of DataType.String
func ParseDataType(s string) (DataType, error) {
	for _, t := range []DataType{Uint8, Uint16, Float32} {
		if s == t.String() {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// Clamp limits v to the range representable by t and drops the fraction
// for integer types
func (t DataType) Clamp(v float64) float64 {
	switch t {
	case Uint8:
		return math.Trunc(math.Max(0, math.Min(v, math.MaxUint8)))
	case Uint16:
		return math.Trunc(math.Max(0, math.Min(v, math.MaxUint16)))
	default:
		return v
	}
}

// Raster is read access to a multi-band pixel grid
type Raster interface {
	Width() int
	Height() int
	BandCount() int
	DataType() DataType
	// ReadWindow returns the samples of one band inside r. r must be fully
	// contained in the raster.
	ReadWindow(band int, r image.Rectangle) (*Plane, error)
}

// Dataset is a Raster backed by an open resource
type Dataset interface {
	Raster
	Close() error
}

// Driver opens and creates raster files of one container format
type Driver interface {
	Open(path string) (Dataset, error)
	// Create writes planes as a new raster file at path. All planes must
	// have the same size. Nothing is left at path when Create fails.
	Create(path string, planes []*Plane, dt DataType) error
	// Ext is the file extension of created files, including the dot
	Ext() string
	// Match reports whether a file name looks like something Open can read
	Match(name string) bool
}

// Options is the error reporting policy of a driver. It is passed to each
// driver instead of being process state so pipelines can run side by side
// with different policies.
type Options struct {
	// Logger receives driver warnings. Nil discards them.
	Logger *log.Logger
	// Strict turns driver warnings into open errors
	Strict bool
}

func (o Options) warn(format string, args ...interface{}) error {
	if o.Strict {
		return fmt.Errorf(format, args...)
	}
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
	return nil
}

// Bounds returns the full extent of r
func Bounds(r Raster) image.Rectangle {
	return image.Rect(0, 0, r.Width(), r.Height())
}

// CheckWindow validates a band index and read rectangle against r
func CheckWindow(r Raster, band int, rect image.Rectangle) error {
	if band < 0 || band >= r.BandCount() {
		return fmt.Errorf("%w: band %d of %d", ErrBandOutOfRange, band, r.BandCount())
	}
	if rect.Empty() || !rect.In(Bounds(r)) {
		return fmt.Errorf("%w: %v not inside %v", ErrWindowOutOfBounds, rect, Bounds(r))
	}
	return nil
}

// ReadBand reads a whole band
func ReadBand(r Raster, band int) (*Plane, error) {
	return r.ReadWindow(band, Bounds(r))
}

// ReadAll reads every band inside rect
func ReadAll(r Raster, rect image.Rectangle) ([]*Plane, error) {
	planes := make([]*Plane, r.BandCount())
	for b := range planes {
		p, err := r.ReadWindow(b, rect)
		if err != nil {
			return nil, err
		}
		planes[b] = p
	}
	return planes, nil
}

func openError(path string, err error) error {
	return fmt.Errorf("%w %s: %v", ErrRasterOpen, path, err)
}

func writeError(path string, err error) error {
	if errors.Is(err, ErrFileWrite) {
		return err
	}
	return fmt.Errorf("%w %s: %v", ErrFileWrite, path, err)
}
