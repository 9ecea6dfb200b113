// Package stretch implements the percentile anchored linear contrast
// stretch that turns raster bands into 8-bit images.
package stretch

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/kiesman99/rstile/internal/raster"
)

// Output range of the stretch
const (
	OutputMin = 0.0
	OutputMax = 255.0
)

// Default percentiles anchoring the stretch
const (
	DefaultLowPercent  = 2.0
	DefaultHighPercent = 98.0
)

var (
	// ErrDegenerateExtremum is returned when a band's low and high reference
	// values are equal (or missing), which would divide by zero
	ErrDegenerateExtremum = errors.New("degenerate extremum")
	// ErrUnsupportedBandCount is returned when the output image would need
	// a band count other than 1, 3 or 4
	ErrUnsupportedBandCount = errors.New("unsupported band count")
)

// Extremum is the (low, high) pair one band is stretched between
type Extremum struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Degenerate reports whether the pair cannot anchor a stretch
func (e Extremum) Degenerate() bool {
	return math.IsNaN(e.Low) || math.IsNaN(e.High) || e.High == e.Low
}

// Spec selects the reference percentiles
type Spec struct {
	LowPercent  float64
	HighPercent float64
}

// DefaultSpec is the 2nd/98th percentile stretch
var DefaultSpec = Spec{LowPercent: DefaultLowPercent, HighPercent: DefaultHighPercent}

// Validate checks 0 <= low < high <= 100
func (s Spec) Validate() error {
	if s.LowPercent < 0 || s.HighPercent > 100 || s.LowPercent >= s.HighPercent {
		return fmt.Errorf("percentiles must satisfy 0 <= low < high <= 100, got %v and %v", s.LowPercent, s.HighPercent)
	}
	return nil
}

// ComputeExtremum computes the 2nd/98th percentile pair of every band of ref
func ComputeExtremum(ref raster.Raster) ([]Extremum, error) {
	return DefaultSpec.ComputeExtremum(ref)
}

// ComputeExtremum reads every band of ref in full and returns its
// (LowPercent, HighPercent) percentile pair, in band order
func (s Spec) ComputeExtremum(ref raster.Raster) ([]Extremum, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	extremum := make([]Extremum, 0, ref.BandCount())
	for b := 0; b < ref.BandCount(); b++ {
		plane, err := raster.ReadBand(ref, b)
		if err != nil {
			return nil, fmt.Errorf("read reference band %d: %w", b+1, err)
		}
		sorted := sortedSamples(plane.Pix)
		if len(sorted) == 0 {
			return nil, fmt.Errorf("%w: reference band %d has no valid samples", ErrDegenerateExtremum, b+1)
		}
		extremum = append(extremum, Extremum{
			Low:  Percentile(sorted, s.LowPercent),
			High: Percentile(sorted, s.HighPercent),
		})
	}

	return extremum, nil
}

// Value maps one sample into the output range: scale linearly so that low
// goes to 0 and high to 255, clamp, then truncate. NaN maps to 0.
func Value(v float64, e Extremum) uint8 {
	scaled := (v-e.Low)*(OutputMax-OutputMin)/(e.High-e.Low) + OutputMin
	switch {
	case math.IsNaN(scaled):
		return uint8(OutputMin)
	case scaled < OutputMin:
		scaled = OutputMin
	case scaled > OutputMax:
		scaled = OutputMax
	}
	return uint8(scaled)
}

// Apply stretches every band of r with the matching extremum and returns an
// 8-bit image: gray for one band, opaque RGB for three, RGBA for four
func Apply(r raster.Raster, extremum []Extremum) (image.Image, error) {
	if r.BandCount() != len(extremum) {
		return nil, fmt.Errorf("%w: raster has %d bands, extremum has %d", raster.ErrBandCountMismatch, r.BandCount(), len(extremum))
	}
	for b, e := range extremum {
		if e.Degenerate() {
			return nil, fmt.Errorf("%w: band %d low %v high %v", ErrDegenerateExtremum, b+1, e.Low, e.High)
		}
	}

	rect := raster.Bounds(r)
	var (
		img      image.Image
		pix      []uint8
		stride   int
		channels int
	)
	switch len(extremum) {
	case 1:
		m := image.NewGray(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 1
	case 3:
		m := image.NewRGBA(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
		for i := 3; i < len(pix); i += 4 {
			pix[i] = uint8(OutputMax)
		}
	case 4:
		m := image.NewNRGBA(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
	default:
		return nil, fmt.Errorf("%w: %d bands, need 1, 3 or 4", ErrUnsupportedBandCount, len(extremum))
	}

	for b, e := range extremum {
		plane, err := raster.ReadBand(r, b)
		if err != nil {
			return nil, fmt.Errorf("read band %d: %w", b+1, err)
		}
		for y := 0; y < plane.Height; y++ {
			for x := 0; x < plane.Width; x++ {
				pix[y*stride+x*channels+b] = Value(plane.Pix[y*plane.Width+x], e)
			}
		}
	}

	return img, nil
}
