package tile

import (
	"errors"
	"fmt"
)

// ErrInvalidGridSpec is returned when a grid spec cannot produce a positive stride
var ErrInvalidGridSpec = errors.New("invalid grid spec")

func invalidSpec(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidGridSpec, fmt.Sprintf(format, args...))
}

func fmtIndex(i int) string {
	return fmt.Sprintf("%04d", i)
}

// Stride returns the horizontal and vertical step between consecutive tiles
func (s GridSpec) Stride() (int, int, error) {
	if s.BlockWidth <= 0 || s.BlockHeight <= 0 {
		return 0, 0, invalidSpec("block size %dx%d must be positive", s.BlockWidth, s.BlockHeight)
	}
	if s.OverlapPercent < 0 || s.OverlapPercent >= 100 {
		return 0, 0, invalidSpec("overlap %d%% must be in [0,100)", s.OverlapPercent)
	}

	overlapWidth := s.BlockWidth * s.OverlapPercent / 100
	overlapHeight := s.BlockHeight * s.OverlapPercent / 100

	strideX := s.BlockWidth - overlapWidth
	strideY := s.BlockHeight - overlapHeight
	if strideX <= 0 || strideY <= 0 {
		return 0, 0, invalidSpec("overlap %d%% leaves stride %dx%d", s.OverlapPercent, strideX, strideY)
	}

	return strideX, strideY, nil
}

// Dimensions returns the number of columns and rows the grid spec lays over a
// srcWidth x srcHeight raster
func (s GridSpec) Dimensions(srcWidth, srcHeight int) (int, int, error) {
	strideX, strideY, err := s.Stride()
	if err != nil {
		return 0, 0, err
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0, nil
	}

	switch s.Policy {
	case DropRemainder:
		return srcWidth / strideX, srcHeight / strideY, nil
	case PadOrClip:
		return cover(srcWidth, s.BlockWidth, strideX), cover(srcHeight, s.BlockHeight, strideY), nil
	default:
		return 0, 0, invalidSpec("unknown remainder policy %d", s.Policy)
	}
}

// cover is the number of windows of size block stepping by stride needed to
// reach the end of an axis of length n
func cover(n, block, stride int) int {
	if n <= block {
		return 1
	}
	return 1 + (n-block+stride-1)/stride
}

// Compute lays the grid over a srcWidth x srcHeight raster and returns the
// windows in column-major order: all rows of column 0, then column 1, ...
//
// The order fixes output numbering. Do not switch it to row-major.
func Compute(srcWidth, srcHeight int, spec GridSpec) ([]Window, error) {
	numCols, numRows, err := spec.Dimensions(srcWidth, srcHeight)
	if err != nil {
		return nil, err
	}
	strideX, strideY, _ := spec.Stride()

	windows := make([]Window, 0, numCols*numRows)
	for col := 0; col < numCols; col++ {
		for row := 0; row < numRows; row++ {
			windows = append(windows, Window{
				Index:  len(windows),
				X:      col * strideX,
				Y:      row * strideY,
				Width:  spec.BlockWidth,
				Height: spec.BlockHeight,
			})
		}
	}

	return windows, nil
}
