package raster

import (
	"fmt"
	"image"

	"github.com/kiesman99/rstile/pkg/tile"
)

// Memory is a Dataset held entirely in memory
type Memory struct {
	width, height int
	dataType      DataType
	bands         []*Plane
	geo           *tile.GeoTransform
}

// NewMemory wraps planes of identical size as a dataset
func NewMemory(dt DataType, planes ...*Plane) (*Memory, error) {
	w, h, err := checkPlanes(planes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterOpen, err)
	}
	return &Memory{width: w, height: h, dataType: dt, bands: planes}, nil
}

func (m *Memory) Width() int         { return m.width }
func (m *Memory) Height() int        { return m.height }
func (m *Memory) BandCount() int     { return len(m.bands) }
func (m *Memory) DataType() DataType { return m.dataType }
func (m *Memory) Close() error       { return nil }

// ReadWindow copies the samples of band inside r
func (m *Memory) ReadWindow(band int, r image.Rectangle) (*Plane, error) {
	if err := CheckWindow(m, band, r); err != nil {
		return nil, err
	}
	src := m.bands[band]
	out := NewPlane(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		off := (r.Min.Y+y)*src.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], src.Pix[off:off+out.Width])
	}
	return out, nil
}
