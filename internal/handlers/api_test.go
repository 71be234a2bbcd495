package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

type fakeExtractor struct {
	page    *models.Page
	tickets []models.Ticket
	export  models.ExportOptions
	err     error
	cleared bool
}

func (f *fakeExtractor) ExtractCurrentView(_ context.Context, page *models.Page) (*models.ExtractionResult, error) {
	f.page = page
	if f.err != nil {
		return nil, f.err
	}
	return &models.ExtractionResult{Outcome: models.OutcomeSuccess, Strategy: models.StrategyListView, Found: 2, Added: 2, Total: 2}, nil
}

func (f *fakeExtractor) ExtractByQuery(context.Context) (*models.ExtractionResult, error) {
	return &models.ExtractionResult{
		Outcome:  models.OutcomePartial,
		Strategy: models.StrategyAPI,
		Failures: []models.TableFailure{{Table: "problem", Error: "boom", Status: 500}},
	}, nil
}

func (f *fakeExtractor) Export(opts models.ExportOptions) (*models.ExportResult, error) {
	f.export = opts
	if len(f.tickets) == 0 {
		return nil, common.NewExportError("no_tickets", "no tickets to export")
	}
	return &models.ExportResult{Path: "/tmp/x.xlsx", Tickets: len(f.tickets), Sheets: 1}, nil
}

func (f *fakeExtractor) Clear() error {
	f.cleared = true
	f.tickets = nil
	return nil
}

func (f *fakeExtractor) Tickets() []models.Ticket { return f.tickets }

func (f *fakeExtractor) Status() models.ExtractorStatus {
	return models.ExtractorStatus{State: models.StateIdle, Total: len(f.tickets)}
}

type fakeSettings struct {
	current models.Settings
	nextID  int
}

func (f *fakeSettings) Current() models.Settings { return f.current.Clone() }

func (f *fakeSettings) Replace(s models.Settings) error {
	if len(s.SelectedTables) == 0 {
		return common.NewValidationError("empty_tables", "at least one table must be selected")
	}
	f.current = s
	return nil
}

func (f *fakeSettings) AddFilter(c models.FilterClause) (models.FilterClause, error) {
	f.nextID++
	c.ID = string(rune('a' + f.nextID - 1))
	f.current.Filters = append(f.current.Filters, c)
	return c, nil
}

func (f *fakeSettings) UpdateFilter(id string, c models.FilterClause) error {
	for i := range f.current.Filters {
		if f.current.Filters[i].ID == id {
			c.ID = id
			f.current.Filters[i] = c
			return nil
		}
	}
	return common.NewValidationError("filter_not_found", "no filter with id "+id)
}

func (f *fakeSettings) RemoveFilter(id string) error {
	for i := range f.current.Filters {
		if f.current.Filters[i].ID == id {
			f.current.Filters = append(f.current.Filters[:i], f.current.Filters[i+1:]...)
			return nil
		}
	}
	return common.NewValidationError("filter_not_found", "no filter with id "+id)
}

func (f *fakeSettings) ClearFilters() error {
	f.current.Filters = nil
	return nil
}

func (f *fakeSettings) AddQuickFilter(name string) ([]models.FilterClause, error) {
	if name != "high_priority" {
		return nil, common.NewValidationError("unknown_quick_filter", "unknown quick filter: "+name)
	}
	c, _ := f.AddFilter(models.FilterClause{Field: "priority", Operator: models.OpLTE, Value: "2"})
	return []models.FilterClause{c}, nil
}

type fakeAssessor struct{}

func (fakeAssessor) AssessPage(_, _ string) (*models.PageAssessment, error) {
	return &models.PageAssessment{PageType: models.PageTypeListView, Confidence: "high", Collectable: true}, nil
}

func newTestHandlers(extractor *fakeExtractor) (*APIHandlers, *fakeSettings) {
	settings := &fakeSettings{current: models.DefaultSettings()}
	return NewAPIHandlers(common.DefaultConfig(), nil, extractor, settings, fakeAssessor{}, arbor.NewLogger(), nil), settings
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestExtractViewHandler(t *testing.T) {
	extractor := &fakeExtractor{}
	h, _ := newTestHandlers(extractor)

	body := `{"url":"https://acme.service-now.com/incident_list.do","html":"<table></table>","session_token":"tok","cookie":"JSESSIONID=s1"}`
	req := httptest.NewRequest(http.MethodPost, "/extract/view", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "other_app", Value: "x"})
	rec := httptest.NewRecorder()

	h.ExtractViewHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExtractViewResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, models.PageTypeListView, resp.Assessment.PageType)
	assert.Equal(t, 2, resp.Result.Added)

	require.NotNil(t, extractor.page)
	assert.Equal(t, "tok", extractor.page.SessionToken)
	require.Len(t, extractor.page.Cookies, 1)
	assert.Equal(t, "JSESSIONID", extractor.page.Cookies[0].Name)
	assert.Equal(t, "s1", extractor.page.Cookies[0].Value)
}

func TestExtractViewHandlerIgnoresLocalCookies(t *testing.T) {
	extractor := &fakeExtractor{}
	h, _ := newTestHandlers(extractor)

	body := `{"url":"https://acme.service-now.com/incident_list.do","html":"<table></table>"}`
	req := httptest.NewRequest(http.MethodPost, "/extract/view", strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "other_app", Value: "x"})
	rec := httptest.NewRecorder()

	h.ExtractViewHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, extractor.page)
	assert.Nil(t, extractor.page.Cookies)
}

func TestExtractViewHandlerRejectsMalformedCookie(t *testing.T) {
	extractor := &fakeExtractor{}
	h, _ := newTestHandlers(extractor)

	body := `{"url":"https://acme.service-now.com/incident_list.do","html":"<table></table>","cookie":"bad name=x"}`
	req := httptest.NewRequest(http.MethodPost, "/extract/view", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ExtractViewHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, extractor.page)
}

func TestExtractViewHandlerErrors(t *testing.T) {
	extractor := &fakeExtractor{err: common.NewValidationError("empty_page", "page HTML is required")}
	h, _ := newTestHandlers(extractor)

	rec := httptest.NewRecorder()
	h.ExtractViewHandler(rec, httptest.NewRequest(http.MethodPost, "/extract/view", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ExtractViewHandler(rec, httptest.NewRequest(http.MethodPost, "/extract/view", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ExtractViewHandler(rec, httptest.NewRequest(http.MethodGet, "/extract/view", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExtractQueryHandler(t *testing.T) {
	h, _ := newTestHandlers(&fakeExtractor{})

	rec := httptest.NewRecorder()
	h.ExtractQueryHandler(rec, httptest.NewRequest(http.MethodPost, "/extract/query", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ExtractionResult
	decodeBody(t, rec, &result)
	assert.Equal(t, models.OutcomePartial, result.Outcome)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 500, result.Failures[0].Status)
}

func TestExportHandler(t *testing.T) {
	extractor := &fakeExtractor{}
	h, _ := newTestHandlers(extractor)

	rec := httptest.NewRecorder()
	h.ExportHandler(rec, httptest.NewRequest(http.MethodPost, "/export", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	extractor.tickets = []models.Ticket{{SysID: "a"}}
	rec = httptest.NewRecorder()
	h.ExportHandler(rec, httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(`{"summary":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, extractor.export.Summary)

	var result models.ExportResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 1, result.Tickets)
}

func TestTicketsHandlerFiltersByTable(t *testing.T) {
	extractor := &fakeExtractor{tickets: []models.Ticket{
		{SysID: "1", TableType: "incident"},
		{SysID: "2", TableType: "problem"},
		{SysID: "3", TableType: "incident"},
	}}
	h, _ := newTestHandlers(extractor)

	rec := httptest.NewRecorder()
	h.TicketsHandler(rec, httptest.NewRequest(http.MethodGet, "/tickets?table=incident", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int             `json:"count"`
		Tickets []models.Ticket `json:"tickets"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "3", resp.Tickets[1].SysID)
	assert.Len(t, extractor.tickets, 3)
}

func TestClearHandler(t *testing.T) {
	extractor := &fakeExtractor{tickets: []models.Ticket{{SysID: "1"}}}
	h, _ := newTestHandlers(extractor)

	rec := httptest.NewRecorder()
	h.ClearHandler(rec, httptest.NewRequest(http.MethodDelete, "/clear", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, extractor.cleared)
}

func TestSettingsHandler(t *testing.T) {
	h, settings := newTestHandlers(&fakeExtractor{})

	rec := httptest.NewRecorder()
	h.SettingsHandler(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"selectedTables":["problem"],"maxRecords":25}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"problem"}, settings.current.SelectedTables)
	assert.Equal(t, 25, settings.current.MaxRecords)
	assert.Equal(t, models.DefaultSettings().SelectedFields, settings.current.SelectedFields)

	rec = httptest.NewRecorder()
	h.SettingsHandler(rec, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"selectedTables":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiltersHandler(t *testing.T) {
	h, settings := newTestHandlers(&fakeExtractor{})

	type filtersResponse struct {
		Filters []models.FilterClause `json:"filters"`
		Query   string                `json:"query"`
	}

	rec := httptest.NewRecorder()
	h.FiltersHandler(rec, httptest.NewRequest(http.MethodPost, "/filters", strings.NewReader(`{"field":"state","operator":"!=","value":"7"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var added models.FilterClause
	decodeBody(t, rec, &added)
	assert.Equal(t, models.OpNotEquals, added.Operator)

	rec = httptest.NewRecorder()
	h.FiltersHandler(rec, httptest.NewRequest(http.MethodPost, "/filters?quick=high_priority", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed filtersResponse
	decodeBody(t, rec, &listed)
	assert.Equal(t, "state!=7^priority<=2", listed.Query)

	rec = httptest.NewRecorder()
	h.FiltersHandler(rec, httptest.NewRequest(http.MethodPut, "/filters?id="+added.ID, strings.NewReader(`{"field":"state","operator":"IN","value":"1,2"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &listed)
	assert.Equal(t, "stateIN1,2^priority<=2", listed.Query)

	rec = httptest.NewRecorder()
	h.FiltersHandler(rec, httptest.NewRequest(http.MethodDelete, "/filters?id=missing", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.FiltersHandler(rec, httptest.NewRequest(http.MethodDelete, "/filters", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, settings.current.Filters)
}

func TestStatusAndHealthHandlers(t *testing.T) {
	extractor := &fakeExtractor{tickets: []models.Ticket{{SysID: "1"}}}
	h, settings := newTestHandlers(extractor)
	settings.current.Filters = []models.FilterClause{{ID: "a", Field: "priority", Operator: models.OpLTE, Value: "2"}}

	rec := httptest.NewRecorder()
	h.StatusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	decodeBody(t, rec, &status)
	assert.Equal(t, 1, status.Extractor.Total)
	assert.Equal(t, "priority<=2", status.Query)

	rec = httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	decodeBody(t, rec, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Services.Instance)
}
