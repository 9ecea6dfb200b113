package raster

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	gtiff "github.com/google/tiff"
	"golang.org/x/image/tiff"

	"github.com/kiesman99/rstile/pkg/tile"
)

// TIFF sample formats
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// tiffHeader is the subset of the first IFD needed to decide how many bands
// a file carries and how to decode them. x/image/tiff folds RGB and RGBA
// into the same image types, so the sample count has to come from the tags.
type tiffHeader struct {
	ImageWidth      uint64   `tiff:"field,tag=256"`
	ImageLength     uint64   `tiff:"field,tag=257"`
	BitsPerSample   []uint16 `tiff:"field,tag=258"`
	Compression     uint16   `tiff:"field,tag=259"`
	Photometric     uint16   `tiff:"field,tag=262"`
	StripOffsets    []uint64 `tiff:"field,tag=273"`
	SamplesPerPixel uint16   `tiff:"field,tag=277"`
	RowsPerStrip    uint64   `tiff:"field,tag=278"`
	StripByteCounts []uint64 `tiff:"field,tag=279"`
	PlanarConfig    uint16   `tiff:"field,tag=284"`
	Predictor       uint16   `tiff:"field,tag=317"`
	TileWidth       uint64   `tiff:"field,tag=322"`
	TileLength      uint64   `tiff:"field,tag=323"`
	TileOffsets     []uint64 `tiff:"field,tag=324"`
	TileByteCounts  []uint64 `tiff:"field,tag=325"`
	ExtraSamples    []uint16 `tiff:"field,tag=338"`
	SampleFormat    []uint16 `tiff:"field,tag=339"`

	ModelPixelScale     []float64 `tiff:"field,tag=33550"`
	ModelTiepoint       []float64 `tiff:"field,tag=33922"`
	ModelTransformation []float64 `tiff:"field,tag=34264"`
}

// TIFF reads 8 and 16 bit unsigned TIFF files with any number of bands,
// stored pixel interleaved or band sequential, uncompressed or with LZW,
// deflate or PackBits compression. It writes 1, 3 or 4 band files. Signed,
// floating point and JPEG compressed rasters need the gdal driver.
type TIFF struct {
	opts     Options
	compress bool
}

// NewTIFF returns a TIFF driver. Created files are deflate compressed when
// compress is set.
func NewTIFF(opts Options, compress bool) *TIFF {
	return &TIFF{opts: opts, compress: compress}
}

// Ext returns ".tiff"
func (d *TIFF) Ext() string { return ".tiff" }

// Match accepts .tif and .tiff in any case
func (d *TIFF) Match(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff":
		return true
	}
	return false
}

// Open decodes the whole file. Windows are then served from memory.
func (d *TIFF) Open(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}
	defer f.Close()

	hdr, order, err := readTIFFHeader(f)
	if err != nil {
		return nil, openError(path, err)
	}
	if err := checkSampleFormat(hdr); err != nil {
		return nil, openError(path, err)
	}

	var ds *tiffDataset
	if hdr.bandInterleaved() {
		ds, err = decodeBands(f, order, hdr)
	} else {
		ds, err = d.decodeImage(f, path, hdr)
	}
	if err != nil {
		return nil, openError(path, err)
	}
	if ds.bands == 0 {
		return nil, openError(path, fmt.Errorf("no bands"))
	}

	if g, ok := geoFromTags(hdr); ok {
		ds.geo = &g
	} else if g, ok, err := sidecarGeo(path); err != nil {
		if err := d.opts.warn("ignoring world file: %v", err); err != nil {
			return nil, openError(path, err)
		}
	} else if ok {
		ds.geo = &g
	}

	return ds, nil
}

// decodeImage decodes gray, paletted and RGB(A) files with x/image/tiff
func (d *TIFF) decodeImage(f *os.File, path string, hdr *tiffHeader) (*tiffDataset, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, err
	}

	ds, err := newTIFFDataset(img)
	if err != nil {
		return nil, err
	}

	samples := hdr.samples()
	if samples > ds.channels {
		if err := d.opts.warn("%s: %d samples per pixel, decoder kept %d", path, samples, ds.channels); err != nil {
			return nil, err
		}
		samples = ds.channels
	}
	if uint64(ds.width) != hdr.ImageWidth || uint64(ds.height) != hdr.ImageLength {
		if err := d.opts.warn("%s: header says %dx%d, decoded %dx%d", path, hdr.ImageWidth, hdr.ImageLength, ds.width, ds.height); err != nil {
			return nil, err
		}
	}
	ds.bands = samples
	return ds, nil
}

func readTIFFHeader(f *os.File) (*tiffHeader, binary.ByteOrder, error) {
	t, err := gtiff.Parse(f, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("parse tiff: %w", err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, nil, fmt.Errorf("no image file directory")
	}
	hdr := &tiffHeader{}
	if err := gtiff.UnmarshalIFD(ifds[0], hdr); err != nil {
		return nil, nil, fmt.Errorf("read tiff tags: %w", err)
	}
	return hdr, t.R().ByteOrder(), nil
}

func (h *tiffHeader) samples() int {
	if h.SamplesPerPixel == 0 {
		return 1
	}
	return int(h.SamplesPerPixel)
}

// bandInterleaved reports whether the samples are plain bands rather than a
// color model x/image/tiff understands: several gray samples per pixel
// (what GDAL writes for multi-band non-Byte rasters), one plane per band,
// or RGB with unspecified extra samples.
func (h *tiffHeader) bandInterleaved() bool {
	samples := h.samples()
	if samples == 1 {
		return false
	}
	if h.PlanarConfig == planarSeparate || h.Photometric != photometricRGB {
		return true
	}
	switch samples {
	case 3:
		return false
	case 4:
		return len(h.ExtraSamples) == 0 || (h.ExtraSamples[0] != extraAssocAlpha && h.ExtraSamples[0] != extraUnassocAlpha)
	}
	return true
}

func checkSampleFormat(hdr *tiffHeader) error {
	for _, sf := range hdr.SampleFormat {
		switch sf {
		case sampleFormatUint:
		case sampleFormatInt:
			return fmt.Errorf("signed integer samples are not supported by the tiff driver")
		case sampleFormatFloat:
			return fmt.Errorf("floating point samples are not supported by the tiff driver")
		default:
			return fmt.Errorf("unknown sample format %d", sf)
		}
	}
	for _, bps := range hdr.BitsPerSample {
		if bps != 8 && bps != 16 {
			return fmt.Errorf("%d bits per sample is not supported by the tiff driver", bps)
		}
	}
	return nil
}

// Create encodes planes as a TIFF file. One band is stored as gray, three
// as RGB with an opaque associated alpha, four as RGBA with unassociated
// alpha, so a three band source reads back with four bands.
func (d *TIFF) Create(path string, planes []*Plane, dt DataType) error {
	img, err := planesToImage(planes, dt)
	if err != nil {
		return writeError(path, err)
	}

	opts := &tiff.Options{Compression: tiff.Uncompressed}
	if d.compress {
		opts.Compression = tiff.Deflate
	}

	return WriteFile(path, func(w io.Writer) error {
		return tiff.Encode(w, img, opts)
	})
}

func planesToImage(planes []*Plane, dt DataType) (image.Image, error) {
	w, h, err := checkPlanes(planes)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, w, h)

	var (
		img      image.Image
		pix      []byte
		stride   int
		channels int
	)
	depth := 1
	if dt == Uint16 {
		depth = 2
	} else if dt != Uint8 {
		return nil, fmt.Errorf("tiff driver cannot store %s samples", dt)
	}

	switch {
	case len(planes) == 1 && depth == 1:
		m := image.NewGray(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 1
	case len(planes) == 1:
		m := image.NewGray16(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 1
	case len(planes) == 3 && depth == 1:
		m := image.NewRGBA(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
	case len(planes) == 3:
		m := image.NewRGBA64(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
	case len(planes) == 4 && depth == 1:
		m := image.NewNRGBA(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
	case len(planes) == 4:
		m := image.NewNRGBA64(rect)
		img, pix, stride, channels = m, m.Pix, m.Stride, 4
	default:
		return nil, fmt.Errorf("tiff driver cannot store %d bands", len(planes))
	}

	for c := 0; c < channels; c++ {
		var src *Plane
		if c < len(planes) {
			src = planes[c]
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				off := y*stride + (x*channels+c)*depth
				if src == nil {
					// Opaque alpha for three band data
					pix[off] = 0xff
					if depth == 2 {
						pix[off+1] = 0xff
					}
					continue
				}
				v := dt.Clamp(src.Pix[y*w+x])
				if depth == 1 {
					pix[off] = uint8(v)
				} else {
					binary.BigEndian.PutUint16(pix[off:], uint16(v))
				}
			}
		}
	}

	return img, nil
}

// tiffDataset serves windows out of decoded pixels. Samples are pixel
// interleaved, 16 bit samples big endian.
type tiffDataset struct {
	width    int
	height   int
	pix      []byte
	stride   int
	channels int
	depth    int
	bands    int
	geo      *tile.GeoTransform
}

func newTIFFDataset(img image.Image) (*tiffDataset, error) {
	b := img.Bounds()
	if b.Min != (image.Point{}) {
		return nil, fmt.Errorf("decoded image starts at %v", b.Min)
	}
	ds := &tiffDataset{width: b.Dx(), height: b.Dy()}
	switch m := img.(type) {
	case *image.Gray:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 1, 1
	case *image.Gray16:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 1, 2
	case *image.Paletted:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 1, 1
	case *image.RGBA:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 4, 1
	case *image.NRGBA:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 4, 1
	case *image.CMYK:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 4, 1
	case *image.RGBA64:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 4, 2
	case *image.NRGBA64:
		ds.pix, ds.stride, ds.channels, ds.depth = m.Pix, m.Stride, 4, 2
	default:
		return nil, fmt.Errorf("unsupported decoded image type %T", img)
	}
	return ds, nil
}

func (ds *tiffDataset) Width() int     { return ds.width }
func (ds *tiffDataset) Height() int    { return ds.height }
func (ds *tiffDataset) BandCount() int { return ds.bands }
func (ds *tiffDataset) Close() error   { return nil }

func (ds *tiffDataset) GeoTransform() (tile.GeoTransform, bool) {
	if ds.geo == nil {
		return tile.GeoTransform{}, false
	}
	return *ds.geo, true
}

func (ds *tiffDataset) DataType() DataType {
	if ds.depth == 2 {
		return Uint16
	}
	return Uint8
}

func (ds *tiffDataset) ReadWindow(band int, r image.Rectangle) (*Plane, error) {
	if err := CheckWindow(ds, band, r); err != nil {
		return nil, err
	}

	out := NewPlane(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		row := (r.Min.Y+y)*ds.stride + (r.Min.X*ds.channels+band)*ds.depth
		for x := 0; x < out.Width; x++ {
			off := row + x*ds.channels*ds.depth
			if ds.depth == 1 {
				out.Pix[y*out.Width+x] = float64(ds.pix[off])
			} else {
				out.Pix[y*out.Width+x] = float64(binary.BigEndian.Uint16(ds.pix[off:]))
			}
		}
	}
	return out, nil
}
