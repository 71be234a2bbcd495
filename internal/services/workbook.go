package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
	"snow-extractor/internal/query"
)

const (
	maxColumnWidth  = 50
	maxSheetNameLen = 31
	unknownTable    = "unknown"
	summarySheet    = "Summary"
)

// dateFields are rendered in a single normalized layout
var dateFields = map[string]bool{
	"opened_at":      true,
	"updated_at":     true,
	"sys_created_on": true,
}

// choiceFields are rendered as "<code> - <label>" when the code is known
var choiceFields = map[string]bool{
	"priority": true,
	"urgency":  true,
	"impact":   true,
	"state":    true,
}

var hostDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type excelWriter struct{}

// NewExcelWriter returns a workbook writer producing .xlsx files
func NewExcelWriter() interfaces.WorkbookWriter {
	return &excelWriter{}
}

func (w *excelWriter) NewWorkbook() interfaces.Workbook {
	return &excelWorkbook{
		file:  excelize.NewFile(),
		names: make(map[string]bool),
	}
}

type excelWorkbook struct {
	file   *excelize.File
	sheets int
	names  map[string]bool
}

// AddSheet writes a header row in bold on grey, then the data rows, then the
// column widths
func (wb *excelWorkbook) AddSheet(sheet models.Sheet) error {
	name := wb.uniqueName(SanitizeSheetName(sheet.Name))

	if wb.sheets == 0 {
		if err := wb.file.SetSheetName(wb.file.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := wb.file.NewSheet(name); err != nil {
		return err
	}
	wb.sheets++

	header := toRow(sheet.Headers)
	if err := wb.file.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := toRow(row)
		if err := wb.file.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}

	if len(sheet.Headers) > 0 {
		style, err := wb.file.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(sheet.Headers), 1)
		if err != nil {
			return err
		}
		if err := wb.file.SetCellStyle(name, "A1", last, style); err != nil {
			return err
		}
	}

	for i, width := range sheet.Widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := wb.file.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}

	return nil
}

func (wb *excelWorkbook) WriteFile(path string) error {
	defer wb.file.Close()
	return wb.file.SaveAs(path)
}

func (wb *excelWorkbook) uniqueName(name string) string {
	return uniqueSheetName(wb.names, name)
}

// uniqueSheetName suffixes name with " (n)" until it is unused, trimming by
// runes to keep within the sheet name limit, and records the result
func uniqueSheetName(used map[string]bool, name string) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		base := []rune(name)
		if keep := maxSheetNameLen - len(suffix); len(base) > keep {
			base = base[:keep]
		}
		candidate = string(base) + suffix
	}
	used[candidate] = true
	return candidate
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// SanitizeSheetName strips characters spreadsheet sheet names cannot hold and
// bounds the length
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetNameLen {
		name = string(r[:maxSheetNameLen])
	}
	return name
}

// WorkbookExporter turns canonical tickets into a workbook, one sheet per
// table when more than one table is selected
type WorkbookExporter struct {
	writer interfaces.WorkbookWriter
	config *ExportConfig
	logger arbor.ILogger
	now    func() time.Time
}

// NewWorkbookExporter creates an exporter writing into config.Directory
func NewWorkbookExporter(config *ExportConfig, writer interfaces.WorkbookWriter, logger arbor.ILogger) *WorkbookExporter {
	return &WorkbookExporter{
		writer: writer,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Export writes tickets using the field and table selection of settings
func (e *WorkbookExporter) Export(tickets []models.Ticket, settings models.Settings, opts models.ExportOptions) (*models.ExportResult, error) {
	if len(opts.Filters) > 0 {
		filtered := make([]models.Ticket, 0, len(tickets))
		for _, t := range tickets {
			if query.Matches(t, opts.Filters) {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}

	if len(tickets) == 0 {
		return nil, NewExportError("no_tickets", "no tickets to export")
	}

	sheets := e.BuildSheets(tickets, settings.SelectedFields, settings.SelectedTables)
	if opts.Summary || e.config.Summary {
		sheets = append(sheets, SummarySheet(tickets, settings.SelectedFields, e.now()))
	}

	wb := e.writer.NewWorkbook()
	for _, sheet := range sheets {
		if err := wb.AddSheet(sheet); err != nil {
			return nil, WrapError(err, ErrorTypeExport, "sheet_failed", fmt.Sprintf("failed to add sheet %s", sheet.Name))
		}
	}

	if err := os.MkdirAll(e.config.Directory, 0755); err != nil {
		return nil, WrapError(err, ErrorTypeExport, "directory_failed", "failed to create export directory")
	}

	prefix := e.config.Prefix
	if opts.Summary {
		prefix += "-summary"
	}
	path := filepath.Join(e.config.Directory, Filename(prefix, settings.SelectedTables, e.now()))

	if err := wb.WriteFile(path); err != nil {
		return nil, WrapError(err, ErrorTypeExport, "write_failed", fmt.Sprintf("failed to write %s", path))
	}

	e.logger.Info().Str("path", path).Int("tickets", len(tickets)).Int("sheets", len(sheets)).Msg("Workbook exported")

	return &models.ExportResult{Path: path, Tickets: len(tickets), Sheets: len(sheets)}, nil
}

// BuildSheets groups tickets by table tag in first-seen order when more than
// one table is selected, else returns a single sheet
func (e *WorkbookExporter) BuildSheets(tickets []models.Ticket, fields, tables []string) []models.Sheet {
	if len(tables) <= 1 {
		return []models.Sheet{buildSheet(e.config.SheetName, tickets, fields)}
	}

	var order []string
	groups := make(map[string][]models.Ticket)
	for _, t := range tickets {
		tag := t.TableType
		if tag == "" {
			tag = unknownTable
		}
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], t)
	}

	sheets := make([]models.Sheet, 0, len(order))
	for _, tag := range order {
		sheets = append(sheets, buildSheet(models.TableName(tag), groups[tag], fields))
	}
	return sheets
}

func buildSheet(name string, tickets []models.Ticket, fields []string) models.Sheet {
	sheet := models.Sheet{
		Name:    name,
		Headers: make([]string, len(fields)),
		Rows:    make([][]string, 0, len(tickets)),
		Widths:  make([]float64, len(fields)),
	}

	longest := make([]int, len(fields))
	for i, field := range fields {
		sheet.Headers[i] = models.FieldName(field)
		longest[i] = len([]rune(sheet.Headers[i]))
	}

	for _, t := range tickets {
		row := make([]string, len(fields))
		for i, field := range fields {
			row[i] = FormatCell(t.Get(field), field)
			if n := len([]rune(row[i])); n > longest[i] {
				longest[i] = n
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	for i, n := range longest {
		sheet.Widths[i] = float64(min(n+2, maxColumnWidth))
	}
	return sheet
}

// FormatCell renders a value for the workbook: dates in one layout, known
// choice codes with their label
func FormatCell(value, field string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if dateFields[field] {
		for _, layout := range hostDateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format("2006-01-02 15:04:05")
			}
		}
		return value
	}

	if choiceFields[field] {
		if label, ok := models.ChoiceLabel(field, value); ok {
			return value + " - " + label
		}
	}

	return value
}

// SummarySheet counts tickets by state, priority and table
func SummarySheet(tickets []models.Ticket, fields []string, at time.Time) models.Sheet {
	sheet := models.Sheet{
		Name:    summarySheet,
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total Tickets", strconv.Itoa(len(tickets))},
			{"Export Date", at.Format("2006-01-02 15:04:05")},
		},
	}

	countBy := func(label string, key func(models.Ticket) string) {
		var order []string
		counts := make(map[string]int)
		for _, t := range tickets {
			k := key(t)
			if k == "" {
				k = "Unknown"
			}
			if _, ok := counts[k]; !ok {
				order = append(order, k)
			}
			counts[k]++
		}
		for _, k := range order {
			sheet.Rows = append(sheet.Rows, []string{label + ": " + k, strconv.Itoa(counts[k])})
		}
	}

	for _, field := range []string{"state", "priority"} {
		for _, f := range fields {
			if f == field {
				countBy(models.FieldName(field), func(t models.Ticket) string { return t.Get(field) })
				break
			}
		}
	}
	countBy("Table", func(t models.Ticket) string {
		if t.TableType == "" {
			return ""
		}
		return models.TableName(t.TableType)
	})

	sheet.Widths = []float64{maxColumnWidth / 2, maxColumnWidth / 2}
	return sheet
}

// Filename builds <prefix>-<table names>-<UTC timestamp>.xlsx with the
// timestamp free of ':' and '.'
func Filename(prefix string, tables []string, at time.Time) string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, models.TableName(t))
	}
	stamp := at.UTC().Format("2006-01-02T15-04-05")
	return fmt.Sprintf("%s-%s-%s.xlsx", prefix, strings.Join(names, "-"), stamp)
}
