package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"snow-extractor/internal/common"
)

func init() {
	rootCmd.AddCommand(versionCmd, validateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Shows version information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s v%s (build: %s, commit: %s)\n", appName, common.GetVersion(), common.GetBuild(), common.GetGitCommit())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validates the configuration file and exits.",
	Run: func(cmd *cobra.Command, args []string) {
		common.PrintSuccess("Configuration is valid")
	},
}
