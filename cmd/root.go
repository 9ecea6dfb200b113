package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rstile/internal/logger"
	"github.com/kiesman99/rstile/internal/raster"
)

const version = "0.3.0"

var (
	cfgFile string
	logFile *os.File
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "rstile",
	Short:   "Cut large rasters into overlapping tiles and stretch them to 8-bit PNG",
	Version: version,
	Long: `rstile prepares multi-band satellite rasters for labelling and training.

clip cuts one raster into a grid of fixed size windows, optionally
overlapping, and writes each window as its own TIFF. convert computes a
2/98 percentile stretch from a reference raster and applies that one
stretch to every raster of a directory, writing 8-bit PNG. stitch
reverses clip using the manifest it wrote.

Examples:
  # 512x512 tiles with 20% overlap
  rstile clip --input scene.tif --output tiles --width 512 --height 512 --overlap 20

  # Keep the right and bottom edges as zero padded tiles
  rstile clip -i scene.tif -o tiles --width 512 --height 512 --overlap 20 --policy pad --manifest

  # Stretch every tile with the statistics of the full scene
  rstile convert --reference scene.tif --input-dir tiles --output-dir png

  # Band statistics of a raster
  rstile stats scene.tif --bands 3,2,1

  # Put the tiles of a clip run back together
  rstile stitch --manifest tiles/manifest.yaml --output restored.tif

  # Start HTTP server
  rstile serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("log-file")
		if path == "" {
			return nil
		}
		f, err := logger.Init(path)
		if err != nil {
			return err
		}
		logFile = f
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the command's context so running exports stop between tiles.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rstile.yaml)")
	rootCmd.PersistentFlags().String("log-file", "", "append log output to this file instead of stderr")
	rootCmd.PersistentFlags().String("driver", "tiff", fmt.Sprintf("raster driver (%s)", strings.Join(raster.Drivers(), "|")))
	rootCmd.PersistentFlags().Bool("strict", false, "fail on raster driver warnings instead of logging them")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not draw progress")

	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".rstile" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".rstile")
	}

	// RSTILE_CLIP_WIDTH sets clip.width, RSTILE_LOG_FILE sets log-file
	viper.SetEnvPrefix("rstile")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newDriver builds the raster driver selected by --driver and --strict.
// Driver warnings go wherever the standard logger writes, prefixed with the
// driver name.
func newDriver() (raster.Driver, error) {
	name := viper.GetString("driver")
	return raster.NewDriver(name, raster.Options{
		Logger: logger.New(nil, name+": "),
		Strict: viper.GetBool("strict"),
	})
}
