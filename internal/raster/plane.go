package raster

import "fmt"

// Plane holds the samples of one band, row-major
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane returns a zero-filled plane
func NewPlane(width, height int) *Plane {
	return &Plane{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// At returns the sample at (x, y)
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Set stores v at (x, y)
func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.Width+x] = v
}

// Extend returns a width x height copy of p with p at the origin and zeros
// elsewhere. p is returned unchanged when it already has that size.
func (p *Plane) Extend(width, height int) *Plane {
	if p.Width == width && p.Height == height {
		return p
	}
	out := NewPlane(width, height)
	for y := 0; y < p.Height && y < height; y++ {
		n := p.Width
		if n > width {
			n = width
		}
		copy(out.Pix[y*width:y*width+n], p.Pix[y*p.Width:y*p.Width+n])
	}
	return out
}

func checkPlanes(planes []*Plane) (int, int, error) {
	if len(planes) == 0 {
		return 0, 0, fmt.Errorf("no bands to write")
	}
	w, h := planes[0].Width, planes[0].Height
	for i, p := range planes {
		if p.Width != w || p.Height != h {
			return 0, 0, fmt.Errorf("band %d is %dx%d, band 0 is %dx%d", i, p.Width, p.Height, w, h)
		}
		if len(p.Pix) != w*h {
			return 0, 0, fmt.Errorf("band %d holds %d samples, expected %d", i, len(p.Pix), w*h)
		}
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("empty %dx%d raster", w, h)
	}
	return w, h, nil
}
