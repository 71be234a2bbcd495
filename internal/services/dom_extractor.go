package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

// ticketNumberPattern matches ticket-number shaped tokens such as INC0012345
var ticketNumberPattern = regexp.MustCompile(`\b[A-Z]{2,6}\d{7,}`)

const (
	rowSelectorSysID = "tr[sys_id], tr[data-sys-id]"
	rowSelectorList  = "tr.list_row"
	rowSelectorBody  = "tbody tr"

	enhancedTableSelector  = `table.list_table, table[id*="list"], .list2_body table`
	enhancedHeaderSelector = "thead tr, tr.list_header_row"
	enhancedRowSelector    = "tbody tr, tr.list_row"
)

// rowFunc reads the selected fields of one list row
type rowFunc func(row *goquery.Selection, index int, fields []string) models.RawRecord

// DOMExtractor scrapes ticket records out of rendered list and form views
type DOMExtractor struct {
	logger     arbor.ILogger
	enhanced   bool
	extractRow rowFunc
}

// NewDOMExtractor creates an extractor; enhanced enables header-mapped list
// extraction ahead of the per-row heuristics.
func NewDOMExtractor(logger arbor.ILogger, enhanced bool) *DOMExtractor {
	return &DOMExtractor{
		logger:     logger,
		enhanced:   enhanced,
		extractRow: heuristicRow,
	}
}

// ParseDocument parses rendered page HTML
func (e *DOMExtractor) ParseDocument(content string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, WrapError(err, ErrorTypeExtraction, "parse_failed", "failed to parse page HTML")
	}
	return doc, nil
}

// ExtractListView returns one record per accepted list row. A row is accepted
// only when more than one of its values, identifier included, is non-empty.
func (e *DOMExtractor) ExtractListView(doc *goquery.Document, fields []string) []models.RawRecord {
	if e.enhanced {
		if records := e.extractEnhanced(doc, fields); len(records) > 0 {
			e.logger.Debug().Int("records", len(records)).Msg("Enhanced list extraction succeeded")
			return records
		}
	}

	rows, ok := firstMatch(doc.Selection, rowsBySysID, rowsByListClass, rowsByContent)
	if !ok {
		return nil
	}

	var records []models.RawRecord
	rows.Each(func(index int, row *goquery.Selection) {
		record, ok := e.safeRow(index, func() models.RawRecord {
			return e.extractRow(row, index, fields)
		})
		if ok && acceptRow(record) {
			records = append(records, record)
		}
	})

	e.logger.Debug().Int("rows", rows.Length()).Int("records", len(records)).Msg("List extraction complete")
	return records
}

// ExtractFormView reads a single record from a form view. It returns nothing
// when no selected field has a value.
func (e *DOMExtractor) ExtractFormView(doc *goquery.Document, fields []string) []models.RawRecord {
	record := models.NewRawRecord()
	nonEmpty := 0

	for _, field := range fields {
		if field == models.SysIDField {
			continue
		}
		value := ExtractField(doc.Selection, field, true)
		if value != "" {
			nonEmpty++
		}
		record.Set(field, value)
	}

	if nonEmpty == 0 {
		return nil
	}

	record.Set(models.SysIDField, formID(doc, record.Fields["number"].Value))
	return []models.RawRecord{record}
}

// safeRow runs a row extraction, skipping rows that panic on malformed markup
func (e *DOMExtractor) safeRow(index int, extract func() models.RawRecord) (record models.RawRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Int("row", index).Str("error", fmt.Sprint(r)).Msg("Skipping row that failed extraction")
			ok = false
		}
	}()
	return extract(), true
}

// heuristicRow matches each field inside the row, keyed by the row's sys_id
// or its position
func heuristicRow(row *goquery.Selection, index int, fields []string) models.RawRecord {
	record := models.NewRawRecord()
	record.Set(models.SysIDField, rowID(row, index))
	for _, field := range fields {
		if field == models.SysIDField {
			continue
		}
		record.Set(field, ExtractField(row, field, false))
	}
	return record
}

func rowsBySysID(sel *goquery.Selection) (*goquery.Selection, bool) {
	rows := sel.Find(rowSelectorSysID)
	return rows, rows.Length() > 0
}

func rowsByListClass(sel *goquery.Selection) (*goquery.Selection, bool) {
	rows := sel.Find(rowSelectorList)
	return rows, rows.Length() > 0
}

func rowsByContent(sel *goquery.Selection) (*goquery.Selection, bool) {
	rows := sel.Find(rowSelectorBody).FilterFunction(func(_ int, row *goquery.Selection) bool {
		if row.Find("td").Length() == 0 {
			return false
		}
		if _, ok := row.Attr("sys_id"); ok {
			return true
		}
		if row.Find("[sys_id], [data-sys-id]").Length() > 0 {
			return true
		}
		return ticketNumberPattern.MatchString(row.Text())
	})
	return rows, rows.Length() > 0
}

// rowID resolves a row identifier, synthesizing a positional one if needed
func rowID(row *goquery.Selection, index int) string {
	for _, attr := range []string{"sys_id", "data-sys-id"} {
		if v, ok := row.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if v, ok := row.Find("[sys_id]").First().Attr("sys_id"); ok && v != "" {
		return v
	}
	if v, ok := row.Find("[data-sys-id]").First().Attr("data-sys-id"); ok && v != "" {
		return v
	}
	return fmt.Sprintf("row_%d", index)
}

func formID(doc *goquery.Document, number string) string {
	if v, ok := doc.Find(`#sys_uniqueValue, input[name="sys_uniqueValue"]`).First().Attr("value"); ok && v != "" {
		return v
	}
	if number != "" {
		return "form_" + number
	}
	return "form_0"
}

func acceptRow(record models.RawRecord) bool {
	nonEmpty := 0
	for _, v := range record.Fields {
		if v.Value != "" {
			nonEmpty++
		}
	}
	return nonEmpty > 1
}

// rowSelectors are tried in order against a list row
func rowSelectors(field string) []string {
	return []string{
		fmt.Sprintf(`td[name="%s"]`, field),
		fmt.Sprintf(`td[data-field="%s"]`, field),
		"." + field,
		fmt.Sprintf(`td[class*="%s"]`, field),
		fmt.Sprintf(`[data-column="%s"]`, field),
	}
}

// formSelectors are tried in order against a whole form document
func formSelectors(field string) []string {
	return []string{
		fmt.Sprintf(`[name="%s"]`, field),
		fmt.Sprintf(`[id="%s"]`, field),
		fmt.Sprintf(`[data-field="%s"]`, field),
		fmt.Sprintf(`[id="sys_display.%s"]`, field),
		fmt.Sprintf(`[id*="%s"]`, field),
		fmt.Sprintf(`[name*="%s"]`, field),
	}
}

// ExtractField resolves one field within a row or form context. The first
// selector yielding a non-empty value wins; "number" falls back to a
// ticket-number pattern over the context text. Absence yields "".
func ExtractField(context *goquery.Selection, field string, form bool) string {
	selectors := rowSelectors(field)
	if form {
		selectors = formSelectors(field)
	}

	for _, selector := range selectors {
		if value := elementValue(context.Find(selector).First()); value != "" {
			return value
		}
	}

	if field == "number" {
		return ticketNumberPattern.FindString(context.Text())
	}
	return ""
}

// elementValue reads an element's value, text, or title
func elementValue(el *goquery.Selection) string {
	if el.Length() == 0 {
		return ""
	}

	switch goquery.NodeName(el) {
	case "input":
		if v := CollapseWhitespace(el.AttrOr("value", "")); v != "" {
			return v
		}
	case "select":
		option := el.Find("option[selected]").First()
		if option.Length() == 0 {
			option = el.Find("option").First()
		}
		if v := CollapseWhitespace(option.Text()); v != "" {
			return v
		}
	}

	if v := CollapseWhitespace(el.Text()); v != "" {
		return v
	}
	return CollapseWhitespace(el.AttrOr("title", ""))
}

// extractEnhanced maps header columns to fields before reading rows, and uses
// the first table that yields tickets.
func (e *DOMExtractor) extractEnhanced(doc *goquery.Document, fields []string) []models.RawRecord {
	var records []models.RawRecord

	doc.Find(enhancedTableSelector).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := table.Find(enhancedHeaderSelector).First()
		if header.Length() == 0 {
			return true
		}
		rows := table.Find(enhancedRowSelector).Not(enhancedHeaderSelector)
		if rows.Length() == 0 {
			return true
		}

		columns := buildColumnMap(header, fields)
		if len(columns) == 0 {
			return true
		}

		rows.Each(func(index int, row *goquery.Selection) {
			record, ok := e.safeRow(index, func() models.RawRecord {
				return mappedRow(row, index, columns, fields)
			})
			if ok && acceptRow(record) {
				records = append(records, record)
			}
		})

		return len(records) == 0
	})

	return records
}

// buildColumnMap matches header cells to fields by name attribute, class, or
// header text against the catalog name.
func buildColumnMap(header *goquery.Selection, fields []string) map[string]int {
	columns := make(map[string]int)

	header.Find("th, td").Each(func(index int, cell *goquery.Selection) {
		text := strings.ToLower(CollapseWhitespace(cell.Text()))
		class := strings.ToLower(cell.AttrOr("class", ""))
		name := cell.AttrOr("name", "")

		for _, field := range fields {
			info, ok := models.LookupField(field)
			if !ok {
				continue
			}
			displayName := strings.ToLower(info.Name)
			if (text != "" && strings.Contains(text, displayName)) ||
				strings.Contains(class, field) ||
				name == field ||
				text == field {
				columns[field] = index
			}
		}
	})

	return columns
}

func mappedRow(row *goquery.Selection, index int, columns map[string]int, fields []string) models.RawRecord {
	record := models.NewRawRecord()
	record.Set(models.SysIDField, rowID(row, index))

	cells := row.Find("td")
	for _, field := range fields {
		if field == models.SysIDField {
			continue
		}
		var value string
		if col, ok := columns[field]; ok && col < cells.Length() {
			value = cellValue(cells.Eq(col))
		} else {
			value = ExtractField(row, field, false)
		}
		record.Set(field, value)
	}
	return record
}

// cellValue prefers link text, then span text, then the cell's own text and
// attributes.
func cellValue(cell *goquery.Selection) string {
	value, _ := firstMatch(cell,
		func(c *goquery.Selection) (string, bool) {
			v := CollapseWhitespace(c.Find("a").First().Text())
			return v, v != ""
		},
		func(c *goquery.Selection) (string, bool) {
			v := CollapseWhitespace(c.Find("span").First().Text())
			return v, v != ""
		},
		func(c *goquery.Selection) (string, bool) {
			v := CollapseWhitespace(c.Text())
			return v, v != ""
		},
		func(c *goquery.Selection) (string, bool) {
			v := strings.TrimSpace(c.AttrOr("title", ""))
			return v, v != ""
		},
		func(c *goquery.Selection) (string, bool) {
			v := strings.TrimSpace(c.AttrOr("data-value", ""))
			return v, v != ""
		},
	)
	return value
}
