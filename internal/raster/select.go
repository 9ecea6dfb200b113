package raster

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Selection is a view of a raster exposing a subset of its bands in a
// chosen order. It does not own the underlying raster.
type Selection struct {
	Raster
	order []int
}

// Select returns a view of r whose band i is band order[i] of r. Indices are
// zero-based. A nil order selects every band unchanged.
func Select(r Raster, order []int) (*Selection, error) {
	if order == nil {
		order = make([]int, r.BandCount())
		for i := range order {
			order[i] = i
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: empty band selection", ErrBandCountMismatch)
	}
	for _, b := range order {
		if b < 0 || b >= r.BandCount() {
			return nil, fmt.Errorf("%w: band %d requested, raster has %d", ErrBandCountMismatch, b+1, r.BandCount())
		}
	}
	return &Selection{Raster: r, order: order}, nil
}

func (s *Selection) BandCount() int { return len(s.order) }

// Close is a no-op. The opener of the underlying raster closes it.
func (s *Selection) Close() error { return nil }

// ReadWindow reads the selected band
func (s *Selection) ReadWindow(band int, r image.Rectangle) (*Plane, error) {
	if band < 0 || band >= len(s.order) {
		return nil, fmt.Errorf("%w: band %d of %d", ErrBandOutOfRange, band, len(s.order))
	}
	return s.Raster.ReadWindow(s.order[band], r)
}

// DefaultBandOrder is the zero-based order used when none is configured:
// bands 3,2,1 for rasters with at least three bands (true colour for the
// usual blue, green, red, nir layout), band 1 otherwise
func DefaultBandOrder(bandCount int) []int {
	if bandCount >= 3 {
		return []int{2, 1, 0}
	}
	return []int{0}
}

// ParseBandOrder parses a comma separated list of one-based band numbers
// such as "3,2,1" into zero-based indices. An empty string returns nil.
func ParseBandOrder(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	order := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid band %q: %v", part, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("band numbers start at 1, got %d", n)
		}
		order = append(order, n-1)
	}
	return order, nil
}

// FormatBandOrder is the inverse of ParseBandOrder
func FormatBandOrder(order []int) string {
	parts := make([]string, len(order))
	for i, b := range order {
		parts[i] = strconv.Itoa(b + 1)
	}
	return strings.Join(parts, ",")
}
