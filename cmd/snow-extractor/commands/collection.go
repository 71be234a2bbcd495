package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

var (
	exportSummary  bool
	exportFiltered bool
)

func init() {
	exportCmd.Flags().BoolVar(&exportSummary, "summary", false, "Append a summary sheet")
	exportCmd.Flags().BoolVar(&exportFiltered, "filtered", false, "Export only tickets matching the saved filters")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--summary] [--filtered]",
	Short: "Writes the collected tickets to an Excel workbook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		opts := models.ExportOptions{Summary: exportSummary}
		if exportFiltered {
			opts.Filters = app.Settings.Current().Filters
		}

		exported, err := app.Extractor.Export(opts)
		if err != nil {
			common.PrintError(err.Error())
			return err
		}

		common.PrintSuccess(fmt.Sprintf("Exported %d tickets to %s", exported.Tickets, exported.Path))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empties the collected tickets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Extractor.Clear(); err != nil {
			common.PrintError(err.Error())
			return err
		}
		common.PrintSuccess("Cleared all extracted tickets")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the collection size and the current selection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		status := app.Extractor.Status()
		settings := app.Settings.Current()

		fmt.Printf("Tickets collected: %d\n", status.Total)
		for _, t := range status.TableTypes {
			if t == "" {
				t = "(current view)"
			}
			fmt.Printf("   • %s\n", models.TableName(t))
		}
		if status.LastUpdate != "" {
			fmt.Printf("Last update: %s\n", status.LastUpdate)
		}
		fmt.Printf("Tables: %v\n", settings.SelectedTables)
		fmt.Printf("Fields: %v\n", settings.SelectedFields)
		fmt.Printf("Filters: %d active\n", len(settings.Filters))
		fmt.Printf("Max records: %d\n", settings.MaxRecords)
		return nil
	},
}
