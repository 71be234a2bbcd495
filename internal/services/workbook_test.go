package services

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

var exportTime = time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)

func testExporter(t *testing.T) *WorkbookExporter {
	t.Helper()
	cfg := common.DefaultConfig().Export
	cfg.Directory = filepath.Join(t.TempDir(), "exports")
	e := NewWorkbookExporter(&cfg, NewExcelWriter(), testLogger())
	e.now = func() time.Time { return exportTime }
	return e
}

func exportTickets() []models.Ticket {
	return []models.Ticket{
		{SysID: "1", TableType: "incident", Values: map[string]string{"number": "INC0000001", "priority": "1", "state": "2"}},
		{SysID: "2", TableType: "problem", Values: map[string]string{"number": "PRB0000001", "priority": "3", "state": "1"}},
		{SysID: "3", TableType: "incident", Values: map[string]string{"number": "INC0000002", "priority": "1", "state": "7"}},
		{SysID: "4", Values: map[string]string{"number": "INC0000003", "priority": "", "state": "1"}},
	}
}

func TestBuildSheetsSingleTable(t *testing.T) {
	e := testExporter(t)
	sheets := e.BuildSheets(exportTickets(), []string{"number", "priority"}, []string{"incident"})

	require.Len(t, sheets, 1)
	assert.Equal(t, "ServiceNow Tickets", sheets[0].Name)
	assert.Equal(t, []string{"Ticket Number", "Priority"}, sheets[0].Headers)
	assert.Len(t, sheets[0].Rows, 4)
	assert.Equal(t, []string{"INC0000001", "1 - Critical"}, sheets[0].Rows[0])
	assert.Equal(t, []float64{15, 14}, sheets[0].Widths)
}

func TestBuildSheetsGroupsByTable(t *testing.T) {
	e := testExporter(t)
	sheets := e.BuildSheets(exportTickets(), []string{"number"}, []string{"incident", "problem"})

	require.Len(t, sheets, 3)
	assert.Equal(t, "Incidents", sheets[0].Name)
	assert.Len(t, sheets[0].Rows, 2)
	assert.Equal(t, "Problems", sheets[1].Name)
	assert.Equal(t, "unknown", sheets[2].Name)
}

func TestColumnWidthIsCapped(t *testing.T) {
	sheet := buildSheet("s", []models.Ticket{
		{SysID: "1", Values: map[string]string{"description": strings.Repeat("x", 200)}},
	}, []string{"description"})
	assert.Equal(t, []float64{maxColumnWidth}, sheet.Widths)
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "2024-01-02 03:04:05", FormatCell("2024-01-02T03:04:05Z", "opened_at"))
	assert.Equal(t, "2024-01-02 00:00:00", FormatCell("2024-01-02", "sys_created_on"))
	assert.Equal(t, "last tuesday", FormatCell("last tuesday", "updated_at"))
	assert.Equal(t, "2 - Medium", FormatCell("2", "urgency"))
	assert.Equal(t, "In Progress", FormatCell("In Progress", "state"))
	assert.Equal(t, "", FormatCell("  ", "number"))
}

func TestFilename(t *testing.T) {
	name := Filename("servicenow", []string{"incident", "sc_task"}, exportTime)
	assert.Equal(t, "servicenow-Incidents-Catalog Tasks-2024-03-05T14-30-15.xlsx", name)
	assert.NotContains(t, strings.TrimSuffix(name, ".xlsx"), ".")
	assert.NotContains(t, name, ":")
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "ab", SanitizeSheetName("a:/b"))
	assert.Equal(t, "Sheet", SanitizeSheetName("[]"))
	assert.Len(t, []rune(SanitizeSheetName(strings.Repeat("n", 40))), maxSheetNameLen)
}

func TestUniqueSheetNameTrimsByRune(t *testing.T) {
	used := make(map[string]bool)
	name := strings.Repeat("é", maxSheetNameLen)

	assert.Equal(t, name, uniqueSheetName(used, name))
	assert.Equal(t, strings.Repeat("é", maxSheetNameLen-4)+" (2)", uniqueSheetName(used, name))
	assert.Equal(t, strings.Repeat("é", maxSheetNameLen-4)+" (3)", uniqueSheetName(used, name))
	assert.Equal(t, "Incidents", uniqueSheetName(used, "Incidents"))
	assert.Equal(t, "Incidents (2)", uniqueSheetName(used, "Incidents"))
}

func TestSummarySheet(t *testing.T) {
	sheet := SummarySheet(exportTickets(), []string{"number", "priority"}, exportTime)

	assert.Equal(t, []string{"Total Tickets", "4"}, sheet.Rows[0])
	assert.Contains(t, sheet.Rows, []string{"Priority: 1", "2"})
	assert.Contains(t, sheet.Rows, []string{"Priority: Unknown", "1"})
	assert.Contains(t, sheet.Rows, []string{"Table: Incidents", "2"})
	for _, row := range sheet.Rows {
		assert.False(t, strings.HasPrefix(row[0], "State:"), "state is not selected")
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	e := testExporter(t)
	settings := models.DefaultSettings()
	settings.SelectedFields = []string{"number", "priority", "state"}
	settings.SelectedTables = []string{"incident", "problem"}

	result, err := e.Export(exportTickets(), settings, models.ExportOptions{Summary: true})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Tickets)
	assert.Equal(t, 4, result.Sheets)
	assert.Equal(t, "servicenow-summary-Incidents-Problems-2024-03-05T14-30-15.xlsx", filepath.Base(result.Path))

	f, err := excelize.OpenFile(result.Path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Incidents", "Problems", "unknown", "Summary"}, f.GetSheetList())
	value, err := f.GetCellValue("Incidents", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1 - Critical", value)
	value, err = f.GetCellValue("Problems", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ticket Number", value)
}

func TestExportFiltered(t *testing.T) {
	e := testExporter(t)
	settings := models.DefaultSettings()
	settings.SelectedFields = []string{"number", "state"}

	result, err := e.Export(exportTickets(), settings, models.ExportOptions{
		Filters: []models.FilterClause{{Field: "number", Operator: models.OpStartsWith, Value: "INC"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Tickets)

	_, err = e.Export(exportTickets(), settings, models.ExportOptions{
		Filters: []models.FilterClause{{Field: "number", Operator: models.OpEquals, Value: "CHG1"}},
	})
	assert.ErrorIs(t, err, common.ErrNoTickets)
}
