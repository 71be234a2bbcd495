package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snow-extractor/internal/common"
	"snow-extractor/internal/models"
	"snow-extractor/internal/query"
	"snow-extractor/internal/services"
)

var (
	filterStart string
	filterEnd   string
)

func init() {
	fieldsCmd.AddCommand(fieldsSetCmd, fieldsToggleCmd)
	tablesCmd.AddCommand(tablesSetCmd, tablesToggleCmd)

	filterAddCmd.Flags().StringVar(&filterStart, "start", "", "Date range start (YYYY-MM-DD)")
	filterAddCmd.Flags().StringVar(&filterEnd, "end", "", "Date range end (YYYY-MM-DD)")
	filterCmd.AddCommand(filterAddCmd, filterRemoveCmd, filterClearCmd, filterListCmd, filterQuickCmd)

	rootCmd.AddCommand(fieldsCmd, tablesCmd, filterCmd, maxRecordsCmd)
}

// withSettings opens the app and runs fn against the settings service
func withSettings(fn func(settings *services.SettingsService) error) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := fn(app.Settings); err != nil {
		common.PrintError(err.Error())
		return err
	}
	return nil
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Lists the field catalog; selected fields are marked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			selected := settings.Current().SelectedFields
			for _, f := range models.Fields {
				fmt.Printf("%s %-20s %s\n", mark(selected, f.Key), f.Key, f.Name)
			}
			return nil
		})
	},
}

var fieldsSetCmd = &cobra.Command{
	Use:   "set <field>...",
	Short: "Replaces the field selection; order sets the column order.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.SetFields(args)
		})
	},
}

var fieldsToggleCmd = &cobra.Command{
	Use:   "toggle <field>",
	Short: "Adds or removes one field.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.ToggleField(args[0])
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Lists the table catalog; selected tables are marked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			selected := settings.Current().SelectedTables
			for _, t := range models.Tables {
				fmt.Printf("%s %-16s %s\n", mark(selected, t.Key), t.Key, t.Name)
			}
			return nil
		})
	},
}

var tablesSetCmd = &cobra.Command{
	Use:   "set <table>...",
	Short: "Replaces the table selection.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.SetTables(args)
		})
	},
}

var tablesToggleCmd = &cobra.Command{
	Use:   "toggle <table>",
	Short: "Adds or removes one table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.ToggleTable(args[0])
		})
	},
}

var maxRecordsCmd = &cobra.Command{
	Use:   "max-records <n>",
	Short: "Sets the per-table record limit for API queries.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid record limit %q: %w", args[0], err)
		}
		return withSettings(func(settings *services.SettingsService) error {
			return settings.SetMaxRecords(n)
		})
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manages the filter clauses compiled into API queries.",
}

var filterAddCmd = &cobra.Command{
	Use:   "add <field> <operator> [value]",
	Short: "Adds a filter clause, e.g. 'filter add priority <= 2'.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := models.ParseOperator(args[1])
		if err != nil {
			return err
		}
		clause := models.FilterClause{
			Field:     args[0],
			Operator:  op,
			DateStart: filterStart,
			DateEnd:   filterEnd,
		}
		if len(args) == 3 {
			clause.Value = args[2]
		}

		return withSettings(func(settings *services.SettingsService) error {
			added, err := settings.AddFilter(clause)
			if err != nil {
				return err
			}
			if added.IsInert() {
				common.PrintWarning(fmt.Sprintf("Filter %s has no value and will be ignored", added.ID))
			} else {
				common.PrintSuccess(fmt.Sprintf("Added filter %s", added.ID))
			}
			return nil
		})
	},
}

var filterRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Removes one filter clause.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.RemoveFilter(args[0])
		})
	},
}

var filterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every filter clause.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			return settings.ClearFilters()
		})
	},
}

var filterQuickCmd = &cobra.Command{
	Use:       "quick <my_tickets|open|high_priority>",
	Short:     "Adds a canned filter set.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{services.QuickMyTickets, services.QuickOpen, services.QuickHighPriority},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			added, err := settings.AddQuickFilter(args[0])
			if err != nil {
				return err
			}
			common.PrintSuccess(fmt.Sprintf("Added %d filter clauses", len(added)))
			return nil
		})
	},
}

var filterListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists filter clauses and the compiled query.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(func(settings *services.SettingsService) error {
			filters := settings.Current().Filters
			for _, f := range filters {
				line := fmt.Sprintf("%s  %s %s %s", f.ID, f.Field, f.Operator, f.Value)
				if f.HasDateRange() {
					line += fmt.Sprintf(" [%s .. %s]", f.DateStart, f.DateEnd)
				}
				if f.IsInert() {
					line += " (inert)"
				}
				fmt.Println(line)
			}
			fmt.Printf("Query: %s\n", query.Compile(filters))
			return nil
		})
	},
}

func mark(selected []string, key string) string {
	for _, s := range selected {
		if s == key {
			return "[x]"
		}
	}
	return "[ ]"
}
