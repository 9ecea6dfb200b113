package tile

import "image"

// Remainder policies
const (
	// DropRemainder tiles only the region covered by whole strides. Pixels on
	// the right and bottom edges that do not fit are never tiled.
	DropRemainder Policy = iota
	// PadOrClip adds a last column and row reaching the source edge. Reads
	// are clipped to the source and the tile is zero-filled to block size.
	PadOrClip
)

// Policy controls what happens to the source region left over after the
// last full stride.
type Policy int

func (p Policy) String() string {
	switch p {
	case DropRemainder:
		return "drop"
	case PadOrClip:
		return "pad"
	default:
		return "unknown"
	}
}

// ParsePolicy maps the command line name of a policy to its value
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop":
		return DropRemainder, nil
	case "pad", "clip":
		return PadOrClip, nil
	}
	return 0, invalidSpec("unknown remainder policy %q", s)
}

// GridSpec describes the tile layout
type GridSpec struct {
	BlockWidth     int
	BlockHeight    int
	OverlapPercent int
	Policy         Policy
}

// Window is one tile of the grid, in source pixel coordinates.
// Index is the position in enumeration order and drives output naming.
type Window struct {
	Index  int `yaml:"index"`
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect returns the nominal window rectangle
func (w Window) Rect() image.Rectangle {
	return image.Rect(w.X, w.Y, w.X+w.Width, w.Y+w.Height)
}

// Clip returns the part of the window that lies inside a srcWidth x srcHeight
// raster. It is empty when the window is entirely outside.
func (w Window) Clip(srcWidth, srcHeight int) image.Rectangle {
	return w.Rect().Intersect(image.Rect(0, 0, srcWidth, srcHeight))
}

// Name returns the output file name for the window with the given extension
func (w Window) Name(ext string) string {
	return fmtIndex(w.Index) + ext
}
