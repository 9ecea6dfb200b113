package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rstile/internal/exporter"
	"github.com/kiesman99/rstile/pkg/tile"
)

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Cut a raster into a grid of fixed size tiles",
	Long: `Cut a raster into a grid of width x height tiles written as 0000.tiff,
0001.tiff, ... in column-major order.

--overlap shares that percentage of each tile with its neighbour. With the
default drop policy the right and bottom pixels that do not fill a whole
stride are left out. With --policy pad an extra column and row reach the
edges and the part beyond the raster is zero filled.

Examples:
  rstile clip --input scene.tif --output tiles --width 600 --height 600 --overlap 20
  rstile clip -i scene.tif -o tiles --width 256 --height 256 --policy pad --workers 4`,
	RunE: runClip,
}

func init() {
	rootCmd.AddCommand(clipCmd)

	clipCmd.Flags().StringP("input", "i", "", "source raster (required)")
	clipCmd.Flags().StringP("output", "o", "", "output directory (required)")
	clipCmd.Flags().Int("width", 0, "tile width in pixels (required)")
	clipCmd.Flags().Int("height", 0, "tile height in pixels (required)")
	clipCmd.Flags().Int("overlap", 0, "overlap between neighbouring tiles in percent, 0-99")
	clipCmd.Flags().String("policy", "drop", "remainder policy (drop|pad)")
	clipCmd.Flags().IntP("workers", "j", 0, "tiles written at once (default: number of CPUs)")
	clipCmd.Flags().Bool("manifest", false, "write "+exporter.ManifestName+" next to the tiles")
	clipCmd.Flags().BoolP("world-file", "w", false, "write a world file per tile when the source is georeferenced")

	viper.BindPFlag("clip.input", clipCmd.Flags().Lookup("input"))
	viper.BindPFlag("clip.output", clipCmd.Flags().Lookup("output"))
	viper.BindPFlag("clip.width", clipCmd.Flags().Lookup("width"))
	viper.BindPFlag("clip.height", clipCmd.Flags().Lookup("height"))
	viper.BindPFlag("clip.overlap", clipCmd.Flags().Lookup("overlap"))
	viper.BindPFlag("clip.policy", clipCmd.Flags().Lookup("policy"))
	viper.BindPFlag("clip.workers", clipCmd.Flags().Lookup("workers"))
	viper.BindPFlag("clip.manifest", clipCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("clip.world-file", clipCmd.Flags().Lookup("world-file"))
}

func runClip(cmd *cobra.Command, args []string) error {
	input := viper.GetString("clip.input")
	output := viper.GetString("clip.output")
	if input == "" {
		return fmt.Errorf("input raster is required (use --input)")
	}
	if output == "" {
		return fmt.Errorf("output directory is required (use --output)")
	}

	policy, err := tile.ParsePolicy(viper.GetString("clip.policy"))
	if err != nil {
		return err
	}
	spec := tile.GridSpec{
		BlockWidth:     viper.GetInt("clip.width"),
		BlockHeight:    viper.GetInt("clip.height"),
		OverlapPercent: viper.GetInt("clip.overlap"),
		Policy:         policy,
	}
	if _, _, err := spec.Stride(); err != nil {
		return err
	}

	driver, err := newDriver()
	if err != nil {
		return err
	}
	src, err := driver.Open(input)
	if err != nil {
		return err
	}
	defer src.Close()

	log.Printf("clip %s (%dx%d, %d bands, %s) into %s", input, src.Width(), src.Height(), src.BandCount(), src.DataType(), output)

	reporter, stop := startProgress(cmd.ErrOrStderr(), "Writing tiles", viper.GetBool("quiet"))
	start := time.Now()
	result, err := exporter.New(driver, exporter.Options{
		Workers:   viper.GetInt("clip.workers"),
		Manifest:  viper.GetBool("clip.manifest"),
		Progress:  reporter,
		WorldFile: viper.GetBool("clip.world-file"),
	}).Export(cmd.Context(), src, spec, output)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s tiles (%d columns x %d rows) to %s in %s\n",
		countStyle.Render(fmt.Sprint(result.Count())), result.Columns, result.Rows, result.Dir,
		durationStyle.Render(time.Since(start).Round(time.Millisecond).String()))
	return nil
}
