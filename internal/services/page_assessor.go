package services

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
)

type pageAssessor struct {
	logger arbor.ILogger
}

// NewPageAssessor creates a new page assessment service
func NewPageAssessor(logger arbor.ILogger) interfaces.PageAssessor {
	return &pageAssessor{
		logger: logger,
	}
}

// AssessPage classifies a host page as a list view, a form view, or other,
// from URL patterns and document structure
func (pa *pageAssessor) AssessPage(htmlContent, url string) (*models.PageAssessment, error) {
	assessment := &models.PageAssessment{
		PageType:    models.PageTypeOther,
		Confidence:  "none",
		Description: "Page type could not be determined",
		Indicators:  []string{},
		Collectable: false,
	}

	doc, err := ParseHTML(htmlContent)
	if err != nil {
		pa.logger.Warn().Err(err).Msg("Failed to parse HTML for assessment")
		return assessment, nil
	}

	assessment.Indicators = append(assessment.Indicators, pa.checkURLPatterns(url)...)
	assessment.Indicators = append(assessment.Indicators, pa.checkHTMLStructure(doc)...)

	assessment.PageType = pa.determinePageType(assessment.Indicators)
	assessment.Confidence = pa.calculateConfidence(assessment.Indicators)
	assessment.Description = pa.getPageDescription(assessment.PageType)
	assessment.Collectable = assessment.PageType != models.PageTypeOther

	pa.logger.Debug().
		Str("page_type", assessment.PageType).
		Str("confidence", assessment.Confidence).
		Str("collectable", fmt.Sprintf("%v", assessment.Collectable)).
		Int("indicators", len(assessment.Indicators)).
		Msg("Page assessment completed")

	return assessment, nil
}

// checkURLPatterns checks the URL for known host patterns
func (pa *pageAssessor) checkURLPatterns(url string) []string {
	indicators := []string{}
	lower := strings.ToLower(url)

	if strings.Contains(lower, "_list.do") {
		indicators = append(indicators, "url_pattern:list")
	} else if strings.Contains(lower, ".do?") && strings.Contains(lower, "sys_id=") {
		indicators = append(indicators, "url_pattern:form")
	}

	if strings.Contains(lower, "nav_to.do") {
		indicators = append(indicators, "url_pattern:navigator")
	}

	if strings.Contains(lower, "service-now.com") || strings.Contains(lower, "servicenow") {
		indicators = append(indicators, "url_pattern:instance_domain")
	}

	return indicators
}

// checkHTMLStructure looks for list rows, list tables and form markers
func (pa *pageAssessor) checkHTMLStructure(doc *html.Node) []string {
	indicators := []string{}

	listRows := 0
	numberedRows := 0
	listTable := false
	formRecord := false
	sessionToken := false

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := GetAttribute(n, "class")

			switch n.Data {
			case "tr":
				if HasAttribute(n, "sys_id") || HasAttribute(n, "data-sys-id") || strings.Contains(class, "list_row") {
					listRows++
				} else if ticketNumberPattern.MatchString(ExtractText(n)) {
					numberedRows++
				}
			case "table":
				if strings.Contains(class, "list_table") || strings.Contains(GetAttribute(n, "id"), "list") {
					listTable = true
				}
			case "input":
				if GetAttribute(n, "id") == "sys_uniqueValue" || GetAttribute(n, "name") == "sys_uniqueValue" {
					formRecord = true
				}
			case "script":
				if FindSessionToken(ExtractText(n)) != "" {
					sessionToken = true
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(doc)

	if listTable {
		indicators = append(indicators, "html_structure:list_table")
	}
	if listRows > 0 {
		indicators = append(indicators, "html_structure:list_rows")
		pa.logger.Debug().Int("count", listRows).Msg("Found list rows")
	}
	if numberedRows >= 2 {
		indicators = append(indicators, "html_structure:numbered_rows")
	}
	if formRecord {
		indicators = append(indicators, "html_structure:form_record")
	}
	if sessionToken {
		indicators = append(indicators, "html_structure:session_token")
	}

	return indicators
}

// determinePageType prefers content over URL; list evidence wins over form
func (pa *pageAssessor) determinePageType(indicators []string) string {
	has := make(map[string]bool, len(indicators))
	for _, indicator := range indicators {
		has[indicator] = true
	}

	if has["html_structure:list_rows"] || has["html_structure:numbered_rows"] {
		return models.PageTypeListView
	}
	if has["html_structure:form_record"] {
		return models.PageTypeFormView
	}
	if has["url_pattern:list"] || has["html_structure:list_table"] {
		return models.PageTypeListView
	}
	if has["url_pattern:form"] {
		return models.PageTypeFormView
	}
	return models.PageTypeOther
}

// calculateConfidence determines confidence level based on number and quality of indicators
func (pa *pageAssessor) calculateConfidence(indicators []string) string {
	if len(indicators) == 0 {
		return "none"
	}

	urlIndicators := 0
	htmlIndicators := 0

	for _, indicator := range indicators {
		if strings.HasPrefix(indicator, "url_pattern:") {
			urlIndicators++
		}
		if strings.HasPrefix(indicator, "html_structure:") {
			htmlIndicators++
		}
	}

	if urlIndicators > 0 && htmlIndicators > 0 {
		return "high"
	}
	if urlIndicators > 0 || htmlIndicators > 0 {
		return "medium"
	}
	return "low"
}

func (pa *pageAssessor) getPageDescription(pageType string) string {
	descriptions := map[string]string{
		models.PageTypeListView: "List View - Multiple tickets in a table",
		models.PageTypeFormView: "Form View - Single ticket record",
		models.PageTypeOther:    "Other Page - No ticket list or form detected",
	}

	if desc, ok := descriptions[pageType]; ok {
		return desc
	}
	return "Unknown page type"
}
