package tile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// GeoTransform maps pixel corners to map coordinates, in GDAL order:
//
//	x = g[0] + col*g[1] + row*g[2]
//	y = g[3] + col*g[4] + row*g[5]
type GeoTransform [6]float64

// Apply returns the map coordinates of pixel corner (col, row)
func (g GeoTransform) Apply(col, row float64) (float64, float64) {
	return g[0] + col*g[1] + row*g[2], g[3] + col*g[4] + row*g[5]
}

// Window returns the transform of a raster whose top left corner is the
// top left corner of w
func (g GeoTransform) Window(w Window) GeoTransform {
	out := g
	out[0], out[3] = g.Apply(float64(w.X), float64(w.Y))
	return out
}

// WorldFilePath returns the world file name for an image: first and last
// letter of the extension plus "w", so .tiff gives .tfw and .png .pgw
func WorldFilePath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	switch len(ext) {
	case 0:
		return base + ".wld"
	case 1:
		return base + "." + ext + "w"
	}
	return base + "." + ext[:1] + ext[len(ext)-1:] + "w"
}

// WriteWorldFile writes g as a six line world file. World files anchor on
// the centre of the top left pixel, not its corner.
func WriteWorldFile(path string, g GeoTransform) error {
	cx, cy := g.Apply(0.5, 0.5)

	return WriteFile(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, v := range []float64{g[1], g[4], g[2], g[5], cx, cy} {
			fmt.Fprintf(bw, "%24.10f\n", v)
		}
		return bw.Flush()
	})
}

// ReadWorldFile parses a six line world file
func ReadWorldFile(path string) (GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return GeoTransform{}, err
	}
	defer f.Close()

	var v []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return GeoTransform{}, fmt.Errorf("world file %s: %v", path, err)
		}
		v = append(v, n)
	}
	if err := sc.Err(); err != nil {
		return GeoTransform{}, err
	}
	if len(v) != 6 {
		return GeoTransform{}, fmt.Errorf("world file %s: expected 6 values, got %d", path, len(v))
	}

	// A D B E C F
	g := GeoTransform{0, v[0], v[2], 0, v[1], v[3]}
	g[0] = v[4] - 0.5*g[1] - 0.5*g[2]
	g[3] = v[5] - 0.5*g[4] - 0.5*g[5]
	return g, nil
}
