package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/daemon"
	"github.com/friendsincode/bragi/internal/logbuffer"
	"github.com/friendsincode/bragi/internal/logging"
	"github.com/friendsincode/bragi/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "bragi",
	Short:   "Bragi - playlist rotation daemon for streaming radio",
	Long:    "Bragi serves shuffled playlists over a UNIX control socket and interleaves generated time and weather announcements into the rotation.",
	Version: version.Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rotation daemon",
	Long:  "Load the playlist directory, bind the control socket, and start the configured background tasks",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuffer := logbuffer.New(10000)
	logger = logging.SetupWithWriter(cfg.Environment, logBuffer)

	logger.Info().Msg("Bragi starting")

	d, err := daemon.New(cfg, logBuffer, logger)
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("shutting down gracefully...")
		cancel()
	}()

	err = d.Run(ctx)
	cancel()
	d.Close()

	if err != nil {
		return err
	}
	logger.Info().Msg("Bragi stopped")
	return nil
}
