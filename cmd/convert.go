package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rstile/internal/normalize"
	"github.com/kiesman99/rstile/internal/raster"
	"github.com/kiesman99/rstile/internal/stretch"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Stretch a directory of rasters to 8-bit PNG with one reference",
	Long: `Compute the low/high percentiles of every selected band of the reference
raster once, then stretch every raster in --input-dir with those values and
write <name>.png to --output-dir. Using the full scene as reference keeps the
colours of its tiles consistent with each other.

Files that cannot be converted are reported and skipped.

Examples:
  rstile convert --reference scene.tif --input-dir tiles --output-dir png
  rstile convert --reference scene.tif --input-dir tiles --output-dir png --bands 4,3,2 --low 1 --high 99`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("reference", "r", "", "raster the stretch is computed from (required)")
	convertCmd.Flags().StringP("input-dir", "i", "", "directory of rasters to convert (required)")
	convertCmd.Flags().StringP("output-dir", "o", "", "directory receiving the PNG files (required)")
	convertCmd.Flags().String("bands", "", "one-based band order, e.g. 3,2,1 (default: 3,2,1 when there are three or more bands, else 1)")
	convertCmd.Flags().Float64("low", stretch.DefaultLowPercent, "low percentile mapped to 0")
	convertCmd.Flags().Float64("high", stretch.DefaultHighPercent, "high percentile mapped to 255")
	convertCmd.Flags().IntP("workers", "j", 0, "files converted at once (default: number of CPUs)")
	convertCmd.Flags().BoolP("world-file", "w", false, "write <name>.pgw for georeferenced inputs")

	viper.BindPFlag("convert.reference", convertCmd.Flags().Lookup("reference"))
	viper.BindPFlag("convert.input-dir", convertCmd.Flags().Lookup("input-dir"))
	viper.BindPFlag("convert.output-dir", convertCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("convert.bands", convertCmd.Flags().Lookup("bands"))
	viper.BindPFlag("convert.low", convertCmd.Flags().Lookup("low"))
	viper.BindPFlag("convert.high", convertCmd.Flags().Lookup("high"))
	viper.BindPFlag("convert.workers", convertCmd.Flags().Lookup("workers"))
	viper.BindPFlag("convert.world-file", convertCmd.Flags().Lookup("world-file"))
}

func runConvert(cmd *cobra.Command, args []string) error {
	reference := viper.GetString("convert.reference")
	inputDir := viper.GetString("convert.input-dir")
	outputDir := viper.GetString("convert.output-dir")
	switch {
	case reference == "":
		return fmt.Errorf("reference raster is required (use --reference)")
	case inputDir == "":
		return fmt.Errorf("input directory is required (use --input-dir)")
	case outputDir == "":
		return fmt.Errorf("output directory is required (use --output-dir)")
	}

	bands, err := raster.ParseBandOrder(viper.GetString("convert.bands"))
	if err != nil {
		return err
	}
	spec := stretch.Spec{
		LowPercent:  viper.GetFloat64("convert.low"),
		HighPercent: viper.GetFloat64("convert.high"),
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	driver, err := newDriver()
	if err != nil {
		return err
	}

	reporter, stop := startProgress(cmd.ErrOrStderr(), "Converting", viper.GetBool("quiet"))
	start := time.Now()
	result, err := normalize.New(driver, normalize.Options{
		Bands:     bands,
		Stretch:   spec,
		Workers:   viper.GetInt("convert.workers"),
		Progress:  reporter,
		Logger:    log.Default(),
		WorldFile: viper.GetBool("convert.world-file"),
	}).Normalize(cmd.Context(), reference, inputDir, outputDir)
	stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reference %s, bands %s\n", reference, raster.FormatBandOrder(result.Bands))
	for i, e := range result.Extremum {
		fmt.Fprintf(out, "  band %d: p%g=%g p%g=%g\n", result.Bands[i]+1, spec.LowPercent, e.Low, spec.HighPercent, e.High)
	}
	fmt.Fprintf(out, "Wrote %s images to %s in %s\n",
		countStyle.Render(fmt.Sprint(len(result.Written))), outputDir,
		durationStyle.Render(time.Since(start).Round(time.Millisecond).String()))

	if len(result.Skipped) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(fmt.Sprintf("Skipped %d files:", len(result.Skipped))))
		for _, s := range result.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", s.File, s.Err)
		}
	}
	return nil
}
