package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
	"snow-extractor/internal/query"
)

// Extractor owns the ticket collection and runs the operator commands:
// extract the current view, extract by query, export and clear. Commands are
// serialized; status reads never block on a running command.
type Extractor struct {
	dom        *DOMExtractor
	querier    interfaces.RecordQuerier
	settings   *SettingsService
	storage    interfaces.Storage
	exporter   *WorkbookExporter
	reporter   interfaces.StatusReporter
	logger     arbor.ILogger
	collection *TicketCollection

	mu sync.Mutex

	stateMu    sync.RWMutex
	state      models.ExtractorState
	total      int
	tableTypes []string
	lastResult *models.ExtractionResult
}

// NewExtractor wires the extraction pipeline and restores any collection
// persisted by an earlier session. storage may be nil.
func NewExtractor(
	dom *DOMExtractor,
	querier interfaces.RecordQuerier,
	settings *SettingsService,
	storage interfaces.Storage,
	exporter *WorkbookExporter,
	reporter interfaces.StatusReporter,
	logger arbor.ILogger,
) *Extractor {
	if reporter == nil {
		reporter = NewLogReporter(logger)
	}

	e := &Extractor{
		dom:        dom,
		querier:    querier,
		settings:   settings,
		storage:    storage,
		exporter:   exporter,
		reporter:   reporter,
		logger:     logger,
		collection: NewTicketCollection(),
		state:      models.StateIdle,
	}

	if storage != nil {
		tickets, err := storage.LoadTickets()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to restore ticket collection, starting empty")
		} else if n := e.collection.Restore(tickets); n > 0 {
			logger.Info().Int("tickets", n).Msg("Restored ticket collection")
		}
	}
	e.publish()

	return e
}

// SetReporter replaces the status reporter
func (e *Extractor) SetReporter(reporter interfaces.StatusReporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = reporter
}

// Settings returns the settings service the extractor reads from
func (e *Extractor) Settings() *SettingsService {
	return e.settings
}

// ExtractCurrentView scrapes a rendered page: list rows first, then the form
// view. Finding nothing is a no-data result, not an error.
func (e *Extractor) ExtractCurrentView(ctx context.Context, page *models.Page) (*models.ExtractionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setState(models.StateIdle)

	if page == nil || strings.TrimSpace(page.HTML) == "" {
		return nil, NewValidationError("empty_page", "page HTML is required")
	}

	e.adoptSession(page)

	e.setState(models.StateScraping)
	e.report("Scanning current page...")

	doc, err := e.dom.ParseDocument(page.HTML)
	if err != nil {
		e.report(fmt.Sprintf("Extraction failed: %v", err))
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := e.settings.Current().SelectedFields

	strategy := models.StrategyListView
	records := e.dom.ExtractListView(doc, fields)
	if len(records) == 0 {
		strategy = models.StrategyFormView
		records = e.dom.ExtractFormView(doc, fields)
	}

	if len(records) == 0 {
		result := &models.ExtractionResult{
			Outcome: models.OutcomeNoData,
			Total:   e.collection.Size(),
			Message: "No ticket data found on current page. Try navigating to a list view or ticket form.",
		}
		return e.finish(result), nil
	}

	e.setState(models.StateMerging)
	added := e.collection.Merge(records, fields)
	e.persist()

	source := "list view"
	if strategy == models.StrategyFormView {
		source = "form view"
	}
	result := &models.ExtractionResult{
		Outcome:  models.OutcomeSuccess,
		Strategy: strategy,
		Found:    len(records),
		Added:    added,
		Total:    e.collection.Size(),
		Message:  fmt.Sprintf("Extracted %d tickets from %s (%d new, %d total)", len(records), source, added, e.collection.Size()),
	}
	return e.finish(result), nil
}

// ExtractByQuery queries every selected table in turn. A table that fails is
// recorded and skipped; records of the other tables are merged as each table
// completes.
func (e *Extractor) ExtractByQuery(ctx context.Context) (*models.ExtractionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setState(models.StateIdle)

	settings := e.settings.Current()
	if len(settings.SelectedTables) == 0 {
		return nil, NewValidationError("no_tables", "at least one table must be selected")
	}

	filter := query.Compile(settings.Filters)
	if filter != "" {
		e.logger.Info().Str("query", filter).Msg("Compiled filter query")
	}

	result := &models.ExtractionResult{Strategy: models.StrategyAPI}
	succeeded := 0

	for i, table := range settings.SelectedTables {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, models.TableFailure{Table: table, Error: err.Error()})
			continue
		}

		e.setState(models.StateQuerying)
		e.report(fmt.Sprintf("Querying %s (%d/%d)...", models.TableName(table), i+1, len(settings.SelectedTables)))

		records, err := e.querier.Query(ctx, table, filter, settings.SelectedFields, settings.MaxRecords)
		if err != nil {
			failure := models.TableFailure{
				Table:   table,
				Error:   err.Error(),
				Timeout: errors.Is(err, ErrTimeout),
				Status:  HTTPStatus(err),
			}
			result.Failures = append(result.Failures, failure)
			e.logger.Warn().Str("table", table).Err(err).Msg("Table query failed, continuing with remaining tables")
			e.report(fmt.Sprintf("Failed to query %s", models.TableName(table)))
			continue
		}
		succeeded++

		for j := range records {
			records[j].TableType = table
			if records[j].SysID() == "" {
				records[j].Set(models.SysIDField, fmt.Sprintf("%s_row_%d_%s", table, j, records[j].ContentKey()))
			}
		}

		e.setState(models.StateMerging)
		added := e.collection.Merge(records, settings.SelectedFields)
		e.persist()

		result.Found += len(records)
		result.Added += added
		e.report(fmt.Sprintf("Got %d tickets from %s (%d new)", len(records), models.TableName(table), added))
	}

	result.Total = e.collection.Size()
	switch {
	case succeeded == 0:
		result.Outcome = models.OutcomeFailed
		result.Message = "All table queries failed: " + failedTables(result.Failures)
	case result.Found == 0 && len(result.Failures) == 0:
		result.Outcome = models.OutcomeNoData
		result.Message = "Query returned no tickets"
	case len(result.Failures) > 0:
		result.Outcome = models.OutcomePartial
		result.Message = fmt.Sprintf("Extracted %d tickets (%d new, %d total); failed: %s",
			result.Found, result.Added, result.Total, failedTables(result.Failures))
	default:
		result.Outcome = models.OutcomeSuccess
		result.Message = fmt.Sprintf("Extracted %d tickets from %d tables (%d new, %d total)",
			result.Found, succeeded, result.Added, result.Total)
	}

	return e.finish(result), nil
}

// Export writes the collection to a workbook using the current selection
func (e *Extractor) Export(opts models.ExportOptions) (*models.ExportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.collection.Size() == 0 {
		e.report("No tickets to export")
		return nil, NewExportError("no_tickets", "no tickets to export")
	}

	e.report("Generating Excel file...")
	exported, err := e.exporter.Export(e.collection.Tickets(), e.settings.Current(), opts)
	if err != nil {
		e.report(fmt.Sprintf("Export failed: %v", err))
		return nil, err
	}

	e.report(fmt.Sprintf("Exported %d tickets to %s", exported.Tickets, exported.Path))
	return exported, nil
}

// Clear empties the collection and its persisted copy
func (e *Extractor) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.collection.Clear()
	var err error
	if e.storage != nil {
		if err = e.storage.ClearTickets(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to clear persisted tickets")
		}
	}
	e.publish()
	e.report("Cleared all extracted tickets")
	return err
}

// Tickets returns a copy of the collection
func (e *Extractor) Tickets() []models.Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collection.Tickets()
}

// Status returns a snapshot without waiting for a running command
func (e *Extractor) Status() models.ExtractorStatus {
	e.stateMu.RLock()
	status := models.ExtractorStatus{
		State:      e.state,
		Total:      e.total,
		TableTypes: append([]string(nil), e.tableTypes...),
		LastResult: e.lastResult,
	}
	e.stateMu.RUnlock()

	if e.storage != nil {
		if lastUpdate, err := e.storage.GetLastUpdate(); err == nil {
			status.LastUpdate = lastUpdate
		}
	}
	return status
}

// adoptSession passes page credentials to the API client, scraping the
// session token from the markup when the page did not carry one
func (e *Extractor) adoptSession(page *models.Page) {
	consumer, ok := e.querier.(interfaces.SessionConsumer)
	if !ok {
		return
	}
	token := page.SessionToken
	if token == "" {
		token = FindSessionToken(page.HTML)
	}
	if token != "" || page.Cookies != nil {
		consumer.UseSession(token, page.Cookies)
		e.logger.Debug().Str("has_token", fmt.Sprintf("%v", token != "")).Int("cookies", len(page.Cookies)).Msg("Adopted page session")
	}
}

func (e *Extractor) persist() {
	e.publish()
	if e.storage == nil {
		return
	}
	if err := e.storage.SaveTickets(e.collection.Tickets()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist ticket collection")
	}
}

// publish copies collection figures for lock-free status reads
func (e *Extractor) publish() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.total = e.collection.Size()
	e.tableTypes = e.collection.TableTypes()
}

func (e *Extractor) finish(result *models.ExtractionResult) *models.ExtractionResult {
	e.stateMu.Lock()
	e.lastResult = result
	e.stateMu.Unlock()

	e.logger.Info().
		Str("outcome", string(result.Outcome)).
		Str("strategy", result.Strategy).
		Int("added", result.Added).
		Int("total", result.Total).
		Int("failures", len(result.Failures)).
		Msg("Extraction finished")
	e.report(result.Message)
	return result
}

func (e *Extractor) setState(state models.ExtractorState) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.state = state
}

func (e *Extractor) report(status string) {
	if e.reporter != nil {
		e.reporter.Report(status)
	}
}

func failedTables(failures []models.TableFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		label := models.TableName(f.Table)
		if f.Timeout {
			label += " (timeout)"
		} else if f.Status != 0 {
			label += fmt.Sprintf(" (HTTP %d)", f.Status)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}
