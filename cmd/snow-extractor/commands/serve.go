package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snow-extractor/internal/common"
	"snow-extractor/internal/services"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP server that browser-side clients post pages and commands to.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info().
			Str("version", common.GetVersion()).
			Str("build", common.GetBuild()).
			Str("environment", cfg.Extractor.Environment).
			Msg("Starting ServiceNow Ticket Extractor")

		if !quiet {
			common.PrintBanner(cfg, "Server", common.GetLogFilePath())
		}

		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		webServer, err := services.NewWebServer(cfg, app.Storage, app.Extractor, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create web server")
			return err
		}

		if err := webServer.Start(cmd.Context()); err != nil {
			logger.Error().Err(err).Msg("Failed to start web server")
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		logger.Info().Int("port", cfg.Extractor.Port).Msg("Server running - press Ctrl+C to stop")

		select {
		case <-sigChan:
			logger.Info().Msg("Shutdown signal received")
		case <-cmd.Context().Done():
		}

		if err := webServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping web server")
		}

		logger.Info().Msg("Server shutdown complete")
		return nil
	},
}
