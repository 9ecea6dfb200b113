package stretch

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kiesman99/rstile/internal/raster"
)

// BandStats summarises one band
type BandStats struct {
	Band    int      `json:"band" yaml:"band"`
	Valid   int      `json:"valid" yaml:"valid"`
	Min     float64  `json:"min" yaml:"min"`
	Max     float64  `json:"max" yaml:"max"`
	Mean    float64  `json:"mean" yaml:"mean"`
	StdDev  float64  `json:"stddev" yaml:"stddev"`
	Stretch Extremum `json:"stretch" yaml:"stretch"`
}

// Describe computes BandStats for every band of r. Stretch holds the pair
// ComputeExtremum would return for the same spec.
func (s Spec) Describe(r raster.Raster) ([]BandStats, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	stats := make([]BandStats, 0, r.BandCount())
	for b := 0; b < r.BandCount(); b++ {
		plane, err := raster.ReadBand(r, b)
		if err != nil {
			return nil, fmt.Errorf("read band %d: %w", b+1, err)
		}
		sorted := sortedSamples(plane.Pix)
		if len(sorted) == 0 {
			return nil, fmt.Errorf("%w: band %d has no valid samples", ErrDegenerateExtremum, b+1)
		}

		mean, std := stat.MeanStdDev(sorted, nil)
		if len(sorted) < 2 {
			std = 0
		}
		stats = append(stats, BandStats{
			Band:   b + 1,
			Valid:  len(sorted),
			Min:    floats.Min(sorted),
			Max:    floats.Max(sorted),
			Mean:   mean,
			StdDev: std,
			Stretch: Extremum{
				Low:  Percentile(sorted, s.LowPercent),
				High: Percentile(sorted, s.HighPercent),
			},
		})
	}
	return stats, nil
}
