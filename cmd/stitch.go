package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rstile/internal/exporter"
	"github.com/kiesman99/rstile/internal/stitch"
)

var stitchCmd = &cobra.Command{
	Use:   "stitch",
	Short: "Reassemble clipped tiles into one raster",
	Long: `Read the ` + exporter.ManifestName + ` written by "clip --manifest" and put every
tile back at its window, producing a raster of the original size.

Examples:
  rstile stitch --manifest tiles/manifest.yaml --output restored.tiff
  rstile stitch -m tiles/manifest.yaml -o restored.tiff --world-file`,
	RunE: runStitch,
}

func init() {
	rootCmd.AddCommand(stitchCmd)

	stitchCmd.Flags().StringP("manifest", "m", "", "manifest written by clip (required)")
	stitchCmd.Flags().StringP("output", "o", "", "output raster (required)")
	stitchCmd.Flags().BoolP("world-file", "w", false, "write a world file when the source was georeferenced")
	stitchCmd.Flags().Int64("max-pixels", stitch.DefaultMaxPixels, "refuse rasters larger than this many pixels")

	viper.BindPFlag("stitch.manifest", stitchCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("stitch.output", stitchCmd.Flags().Lookup("output"))
	viper.BindPFlag("stitch.world-file", stitchCmd.Flags().Lookup("world-file"))
	viper.BindPFlag("stitch.max-pixels", stitchCmd.Flags().Lookup("max-pixels"))
}

func runStitch(cmd *cobra.Command, args []string) error {
	manifest := viper.GetString("stitch.manifest")
	output := viper.GetString("stitch.output")
	if manifest == "" {
		return fmt.Errorf("manifest is required (use --manifest)")
	}
	if output == "" {
		return fmt.Errorf("output raster is required (use --output)")
	}

	driver, err := newDriver()
	if err != nil {
		return err
	}

	reporter, stop := startProgress(cmd.ErrOrStderr(), "Placing tiles", viper.GetBool("quiet"))
	start := time.Now()
	result, err := stitch.New(driver, stitch.Options{
		Progress:  reporter,
		WorldFile: viper.GetBool("stitch.world-file"),
		MaxPixels: viper.GetInt64("stitch.max-pixels"),
	}).Stitch(cmd.Context(), manifest, output)
	stop()

	var tileErr *stitch.TileError
	if errors.As(err, &tileErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("%d of %d tiles could not be placed:", len(tileErr.Failed), tileErr.TotalTiles)))
		for _, f := range tileErr.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", f.File, f.Err)
		}
		return fmt.Errorf("nothing written")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %dx%d raster from %s tiles to %s in %s\n",
		result.Width, result.Height, countStyle.Render(fmt.Sprint(result.Tiles)), result.Output,
		durationStyle.Render(time.Since(start).Round(time.Millisecond).String()))
	return nil
}
