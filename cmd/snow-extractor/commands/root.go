package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"snow-extractor/internal/common"
	"snow-extractor/internal/services"
)

const appName = "snow-extractor"

var (
	configPath string
	mode       string
	quiet      bool

	cfg    *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "snow-extractor extracts ServiceNow tickets from list views, forms and the REST API into Excel workbooks.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := common.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		loaded.Extractor.Environment = parseMode(mode)
		cfg = loaded

		if err := common.InitLogger(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = common.GetLogger()

		logger.Debug().
			Str("version", common.GetVersion()).
			Str("environment", cfg.Extractor.Environment).
			Str("config_path", configPath).
			Str("command", cmd.Name()).
			Msg("Configuration loaded")
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress banner output")
}

// ExecuteContext runs the command line
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp builds the pipeline; callers must Close it
func openApp() (*services.App, error) {
	app, err := services.NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return app, nil
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}
