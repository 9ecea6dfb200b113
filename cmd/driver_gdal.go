//go:build gdal

package cmd

// Registers the "gdal" raster driver
import _ "github.com/kiesman99/rstile/internal/raster/gdal"
