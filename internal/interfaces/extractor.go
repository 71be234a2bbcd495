package interfaces

import (
	"context"
	"net/http"

	"snow-extractor/internal/models"
)

// SettingsStore is a text key/value store for operator settings. Reads
// degrade to the default when the store is unavailable.
type SettingsStore interface {
	Get(key, defaultValue string) string
	Set(key, value string) error
}

// Storage persists settings and the session's ticket collection
type Storage interface {
	SettingsStore
	SaveTickets(tickets []models.Ticket) error
	LoadTickets() ([]models.Ticket, error)
	ClearTickets() error
	GetLastUpdate() (string, error)
	Close() error
}

// PageSource supplies the rendered host document to scrape
type PageSource interface {
	FetchPage(ctx context.Context) (*models.Page, error)
}

// RecordQuerier runs one logical table query against the host REST API
type RecordQuerier interface {
	Query(ctx context.Context, table, filter string, fields []string, limit int) ([]models.RawRecord, error)
}

// SessionConsumer accepts ambient session credentials discovered at runtime
type SessionConsumer interface {
	UseSession(token string, cookies []*http.Cookie)
}

// StatusReporter receives the short human-readable status strings emitted
// while commands run
type StatusReporter interface {
	Report(status string)
}

// WorkbookWriter creates workbooks for export
type WorkbookWriter interface {
	NewWorkbook() Workbook
}

// Workbook is a spreadsheet under construction
type Workbook interface {
	AddSheet(sheet models.Sheet) error
	WriteFile(path string) error
}

type PageAssessor interface {
	AssessPage(htmlContent, url string) (*models.PageAssessment, error)
}

type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// TicketExtractor runs the operator commands against the ticket collection
type TicketExtractor interface {
	ExtractCurrentView(ctx context.Context, page *models.Page) (*models.ExtractionResult, error)
	ExtractByQuery(ctx context.Context) (*models.ExtractionResult, error)
	Export(opts models.ExportOptions) (*models.ExportResult, error)
	Clear() error
	Tickets() []models.Ticket
	Status() models.ExtractorStatus
}

// SettingsManager reads and mutates the operator's selection
type SettingsManager interface {
	Current() models.Settings
	Replace(settings models.Settings) error
	AddFilter(clause models.FilterClause) (models.FilterClause, error)
	UpdateFilter(id string, clause models.FilterClause) error
	RemoveFilter(id string) error
	ClearFilters() error
	AddQuickFilter(name string) ([]models.FilterClause, error)
}
