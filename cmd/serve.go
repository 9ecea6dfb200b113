package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/rstile/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server running clip, convert and stitch jobs",
	Long: `Start an HTTP server that provides a REST API for clip, convert and stitch jobs.

Jobs run in the background on the server's filesystem, confined to the
directory given by --root. Relative request paths are taken from it and paths
leading outside it are rejected. POST /api/v1/clip, /api/v1/convert or
/api/v1/stitch returns a job id; poll GET /api/v1/jobs/{id} for progress and
DELETE it to cancel.

Browsers may only submit or cancel jobs from origins listed with
--cors-origin.

Examples:
  # Start server on default port 8080, serving the current directory
  rstile serve

  # Start server on custom port over a data directory
  rstile serve --port 3000 --root /data/scenes

  # Allow a web client to submit jobs
  rstile serve --bind 0.0.0.0 --cors-origin https://viewer.example.org`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	serveCmd.Flags().String("root", ".", "directory request paths are resolved against and confined to")
	serveCmd.Flags().StringSlice("cors-origin", nil, "origin allowed to call the API from a browser (repeatable)")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.root", serveCmd.Flags().Lookup("root"))
	viper.BindPFlag("server.cors-origins", serveCmd.Flags().Lookup("cors-origin"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")
	origins := viper.GetStringSlice("server.cors-origins")

	addr := fmt.Sprintf("%s:%d", bind, port)

	driver, err := newDriver()
	if err != nil {
		return err
	}

	apiServer, err := server.NewServer(version, driver, viper.GetString("server.root"))
	if err != nil {
		return err
	}
	defer apiServer.Close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(apiServer, timeout, origins),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		<-cmd.Context().Done()

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting rstile server on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Clip endpoint: http://%s/api/v1/clip\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Convert endpoint: http://%s/api/v1/convert\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Stitch endpoint: http://%s/api/v1/stitch\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving files under %s\n", apiServer.Root())

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
