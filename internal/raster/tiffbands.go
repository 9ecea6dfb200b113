package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/image/tiff/lzw"
)

// TIFF tag values used by the band decoder
const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionPackBits   = 32773
	compressionDeflateOld = 32946

	photometricRGB = 2

	planarContig   = 1
	planarSeparate = 2

	predictorNone       = 1
	predictorHorizontal = 2

	extraAssocAlpha   = 1
	extraUnassocAlpha = 2
)

// maxDecodedBytes caps the memory the band decoder allocates for one file
const maxDecodedBytes = 1 << 32

// decodeBands reads every strip or tile of a file whose samples are plain
// bands, either pixel interleaved (PlanarConfiguration 1) or one plane per
// band (PlanarConfiguration 2), into a pixel interleaved dataset.
func decodeBands(r io.ReaderAt, order binary.ByteOrder, h *tiffHeader) (*tiffDataset, error) {
	width, height := int(h.ImageWidth), int(h.ImageLength)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	samples := h.samples()
	if len(h.BitsPerSample) == 0 {
		return nil, fmt.Errorf("missing BitsPerSample")
	}
	bits := h.BitsPerSample[0]
	for _, b := range h.BitsPerSample {
		if b != bits {
			return nil, fmt.Errorf("mixed sample sizes %v", h.BitsPerSample)
		}
	}
	depth := int(bits) / 8
	if size := int64(width) * int64(height) * int64(samples) * int64(depth); size > maxDecodedBytes {
		return nil, fmt.Errorf("%dx%d with %d bands is too large for the tiff driver, use the gdal driver", width, height, samples)
	}

	switch h.Predictor {
	case 0, predictorNone, predictorHorizontal:
	default:
		return nil, fmt.Errorf("predictor %d is not supported by the tiff driver", h.Predictor)
	}

	planes, spp := 1, samples
	switch h.PlanarConfig {
	case 0, planarContig:
	case planarSeparate:
		planes, spp = samples, 1
	default:
		return nil, fmt.Errorf("unknown planar configuration %d", h.PlanarConfig)
	}

	tiled := h.TileWidth > 0
	blockW, blockH := width, int(h.RowsPerStrip)
	offsets, counts := h.StripOffsets, h.StripByteCounts
	if tiled {
		blockW, blockH = int(h.TileWidth), int(h.TileLength)
		offsets, counts = h.TileOffsets, h.TileByteCounts
	} else if blockH <= 0 || blockH > height {
		blockH = height
	}
	if blockW <= 0 || blockH <= 0 {
		return nil, fmt.Errorf("invalid block size %dx%d", blockW, blockH)
	}

	across := (width + blockW - 1) / blockW
	down := (height + blockH - 1) / blockH
	perPlane := across * down
	if len(offsets) < perPlane*planes || len(counts) < perPlane*planes {
		return nil, fmt.Errorf("inconsistent header: %d blocks, %d offsets, %d byte counts", perPlane*planes, len(offsets), len(counts))
	}

	ds := &tiffDataset{
		width:    width,
		height:   height,
		pix:      make([]byte, width*height*samples*depth),
		stride:   width * samples * depth,
		channels: samples,
		depth:    depth,
		bands:    samples,
	}

	rowBytes := blockW * spp * depth
	for p := 0; p < planes; p++ {
		for j := 0; j < down; j++ {
			for i := 0; i < across; i++ {
				idx := p*perPlane + j*across + i
				rows := blockH
				if !tiled && j == down-1 {
					// The last strip holds only the remaining rows
					rows = height - j*blockH
				}

				buf, err := readBlock(r, h.Compression, int64(offsets[idx]), int64(counts[idx]), rowBytes*rows)
				if err != nil {
					return nil, fmt.Errorf("block %d: %w", idx, err)
				}
				if len(buf) < rowBytes*rows {
					return nil, fmt.Errorf("block %d: %d bytes, want %d", idx, len(buf), rowBytes*rows)
				}
				if h.Predictor == predictorHorizontal {
					undoHorizontalPredictor(buf, order, rowBytes, rows, spp, depth)
				}

				x0, y0 := i*blockW, j*blockH
				for y := 0; y < rows && y0+y < height; y++ {
					for x := 0; x < blockW && x0+x < width; x++ {
						for s := 0; s < spp; s++ {
							band := s
							if planes > 1 {
								band = p
							}
							src := y*rowBytes + (x*spp+s)*depth
							dst := (y0+y)*ds.stride + ((x0+x)*samples+band)*depth
							if depth == 1 {
								ds.pix[dst] = buf[src]
							} else {
								binary.BigEndian.PutUint16(ds.pix[dst:], order.Uint16(buf[src:]))
							}
						}
					}
				}
			}
		}
	}

	return ds, nil
}

// readBlock returns the decompressed bytes of one strip or tile, at most
// want of them
func readBlock(r io.ReaderAt, compression uint16, offset, n int64, want int) ([]byte, error) {
	section := io.NewSectionReader(r, offset, n)
	switch compression {
	case 0, compressionNone:
		buf := make([]byte, n)
		if _, err := io.ReadFull(section, buf); err != nil {
			return nil, err
		}
		return buf, nil
	case compressionLZW:
		rc := lzw.NewReader(section, lzw.MSB, 8)
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, int64(want)))
	case compressionDeflate, compressionDeflateOld:
		rc, err := zlib.NewReader(section)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, int64(want)))
	case compressionPackBits:
		return unpackBits(section, want)
	default:
		return nil, fmt.Errorf("compression %d is not supported by the tiff driver, use the gdal driver", compression)
	}
}

// unpackBits decodes PackBits run-length data
func unpackBits(r io.Reader, want int) ([]byte, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out := bytes.NewBuffer(make([]byte, 0, want))
	for i := 0; i < len(src) && out.Len() < want; {
		code := int8(src[i])
		i++
		switch {
		case code >= 0:
			n := int(code) + 1
			if i+n > len(src) {
				return nil, fmt.Errorf("packbits literal runs past the data")
			}
			out.Write(src[i : i+n])
			i += n
		case code != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("packbits repeat runs past the data")
			}
			out.Write(bytes.Repeat(src[i:i+1], 1-int(code)))
			i++
		}
	}
	return out.Bytes(), nil
}

// undoHorizontalPredictor turns per-row differences back into samples.
// Each sample is stored as the difference to the same sample of the pixel
// to its left.
func undoHorizontalPredictor(buf []byte, order binary.ByteOrder, rowBytes, rows, spp, depth int) {
	step := spp * depth
	for y := 0; y < rows; y++ {
		row := buf[y*rowBytes : (y+1)*rowBytes]
		if depth == 1 {
			for k := step; k < len(row); k++ {
				row[k] += row[k-step]
			}
			continue
		}
		for k := step; k+2 <= len(row); k += 2 {
			order.PutUint16(row[k:], order.Uint16(row[k:])+order.Uint16(row[k-step:]))
		}
	}
}
