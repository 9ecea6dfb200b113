package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiesman99/rstile/pkg/tile"
)

// Georeferenced is implemented by datasets that know their position on
// the ground
type Georeferenced interface {
	GeoTransform() (tile.GeoTransform, bool)
}

// GeoTransformOf returns the transform of r if it has one
func GeoTransformOf(r Raster) (tile.GeoTransform, bool) {
	if g, ok := r.(Georeferenced); ok {
		return g.GeoTransform()
	}
	return tile.GeoTransform{}, false
}

// GeoTransform forwards to the underlying raster
func (s *Selection) GeoTransform() (tile.GeoTransform, bool) {
	return GeoTransformOf(s.Raster)
}

// GeoTransform returns the transform set with SetGeoTransform
func (m *Memory) GeoTransform() (tile.GeoTransform, bool) {
	if m.geo == nil {
		return tile.GeoTransform{}, false
	}
	return *m.geo, true
}

// SetGeoTransform places the dataset on the ground
func (m *Memory) SetGeoTransform(g tile.GeoTransform) {
	m.geo = &g
}

// geoFromTags builds a transform from GeoTIFF model tags. The
// transformation matrix wins over tie point plus scale.
func geoFromTags(hdr *tiffHeader) (tile.GeoTransform, bool) {
	if m := hdr.ModelTransformation; len(m) == 16 {
		return tile.GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}, true
	}
	if len(hdr.ModelTiepoint) >= 6 && len(hdr.ModelPixelScale) >= 2 {
		tp, sc := hdr.ModelTiepoint, hdr.ModelPixelScale
		return tile.GeoTransform{
			tp[3] - tp[0]*sc[0], sc[0], 0,
			tp[4] + tp[1]*sc[1], 0, -sc[1],
		}, true
	}
	return tile.GeoTransform{}, false
}

// sidecarGeo looks for a world file next to path
func sidecarGeo(path string) (tile.GeoTransform, bool, error) {
	candidates := []string{
		tile.WorldFilePath(path),
		strings.TrimSuffix(path, filepath.Ext(path)) + ".wld",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		g, err := tile.ReadWorldFile(c)
		if err != nil {
			return tile.GeoTransform{}, false, fmt.Errorf("%s: %v", c, err)
		}
		return g, true, nil
	}
	return tile.GeoTransform{}, false, nil
}
