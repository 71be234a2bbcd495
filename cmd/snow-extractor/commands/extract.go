package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

var (
	pageFile string
	pageURL  string
)

func init() {
	extractViewCmd.Flags().StringVar(&pageFile, "file", "", "Read a saved page from this HTML file instead of the browser")
	extractViewCmd.Flags().StringVar(&pageURL, "url", "", "URL the saved page was captured from")
	rootCmd.AddCommand(extractViewCmd)
	rootCmd.AddCommand(extractQueryCmd)
}

var extractViewCmd = &cobra.Command{
	Use:   "extract-view [--file <page.html>]",
	Short: "Extracts tickets from the current list or form view.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		page, err := app.PageSource(pageFile, pageURL).FetchPage(cmd.Context())
		if err != nil {
			common.PrintError(err.Error())
			return err
		}

		result, err := app.Extractor.ExtractCurrentView(cmd.Context(), page)
		if err != nil {
			common.PrintError(err.Error())
			return err
		}

		printResult(result)
		return nil
	},
}

var extractQueryCmd = &cobra.Command{
	Use:   "extract-query",
	Short: "Queries every selected table through the REST API with the saved filters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.Extractor.ExtractByQuery(cmd.Context())
		if err != nil {
			common.PrintError(err.Error())
			return err
		}

		printResult(result)
		return nil
	},
}

func printResult(result *models.ExtractionResult) {
	switch result.Outcome {
	case models.OutcomeSuccess:
		common.PrintSuccess(result.Message)
	case models.OutcomeNoData:
		common.PrintInfo(result.Message)
	case models.OutcomePartial:
		common.PrintWarning(result.Message)
	default:
		common.PrintError(result.Message)
	}

	for _, f := range result.Failures {
		fmt.Printf("   • %s: %s\n", models.TableName(f.Table), f.Error)
	}
}
