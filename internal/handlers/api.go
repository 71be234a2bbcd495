package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
	"snow-extractor/internal/query"
)

// maxRequestBody bounds posted page HTML
const maxRequestBody = 32 << 20

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config    *common.Config
	storage   interfaces.Storage
	extractor interfaces.TicketExtractor
	settings  interfaces.SettingsManager
	assessor  interfaces.PageAssessor
	logger    arbor.ILogger
	startTime time.Time
	wsHub     *WebSocketHub
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Database bool `json:"database"`
		Instance bool `json:"instance_configured"`
	} `json:"services"`
}

// VersionResponse represents server version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// StatusResponse represents the extractor status response
type StatusResponse struct {
	Extractor models.ExtractorStatus `json:"extractor"`
	Settings  models.Settings        `json:"settings"`
	Query     string                 `json:"query"`
	Uptime    float64                `json:"uptime"`
}

// CatalogResponse lists the selectable tables, fields and filter fields
type CatalogResponse struct {
	Tables       []models.TableInfo       `json:"tables"`
	Fields       []models.FieldInfo       `json:"fields"`
	FilterFields []models.FilterFieldInfo `json:"filter_fields"`
}

// PageRequest carries a rendered page posted by a browser-side client.
// Cookie is the instance cookie header as read on the instance page; cookies
// the browser sends to this server belong to another origin and are not used.
type PageRequest struct {
	URL          string `json:"url"`
	HTML         string `json:"html"`
	SessionToken string `json:"session_token"`
	Cookie       string `json:"cookie,omitempty"`
}

// ExtractViewResponse pairs a page assessment with the extraction result
type ExtractViewResponse struct {
	Assessment *models.PageAssessment   `json:"assessment,omitempty"`
	Result     *models.ExtractionResult `json:"result"`
}

// ActionResponse represents simple command responses
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(
	config *common.Config,
	storage interfaces.Storage,
	extractor interfaces.TicketExtractor,
	settings interfaces.SettingsManager,
	assessor interfaces.PageAssessor,
	logger arbor.ILogger,
	wsHub *WebSocketHub,
) *APIHandlers {
	return &APIHandlers{
		config:    config,
		storage:   storage,
		extractor: extractor,
		settings:  settings,
		assessor:  assessor,
		logger:    logger,
		startTime: time.Now(),
		wsHub:     wsHub,
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Database = h.testDatabaseConnection()
	health.Services.Instance = h.config.Instance.BaseURL != ""

	if !health.Services.Database {
		health.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, health)
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	})
}

// StatusHandler returns the collection state, selection and compiled query
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	settings := h.settings.Current()
	h.writeJSON(w, http.StatusOK, StatusResponse{
		Extractor: h.extractor.Status(),
		Settings:  settings,
		Query:     query.Compile(settings.Filters),
		Uptime:    time.Since(h.startTime).Seconds(),
	})
}

// CatalogHandler returns the fixed catalogs
func (h *APIHandlers) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, CatalogResponse{
		Tables:       models.Tables,
		Fields:       models.Fields,
		FilterFields: models.FilterFields,
	})
}

// ExtractViewHandler extracts tickets from a posted page
func (h *APIHandlers) ExtractViewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PageRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}

	page := &models.Page{
		URL:          req.URL,
		HTML:         req.HTML,
		SessionToken: req.SessionToken,
	}
	if req.Cookie != "" {
		cookies, err := http.ParseCookie(req.Cookie)
		if err != nil {
			h.writeError(w, common.WrapError(err, common.ErrorTypeValidation, "invalid_cookie", "page cookie header is malformed"))
			return
		}
		page.Cookies = cookies
	}

	resp := ExtractViewResponse{}
	if h.assessor != nil && req.HTML != "" {
		if assessment, err := h.assessor.AssessPage(req.HTML, req.URL); err == nil {
			resp.Assessment = assessment
		}
	}

	result, err := h.extractor.ExtractCurrentView(r.Context(), page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp.Result = result

	h.broadcastResult("extract_view", result)
	h.writeJSON(w, http.StatusOK, resp)
}

// ExtractQueryHandler queries every selected table through the REST API
func (h *APIHandlers) ExtractQueryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.extractor.ExtractByQuery(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcastResult("extract_query", result)
	h.writeJSON(w, http.StatusOK, result)
}

// ExportHandler writes the collection to a workbook on the server
func (h *APIHandlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var opts models.ExportOptions
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &opts); err != nil {
			return
		}
	}

	exported, err := h.extractor.Export(opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, exported)
}

// ClearHandler empties the collection
func (h *APIHandlers) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.extractor.Clear(); err != nil {
		h.writeError(w, err)
		return
	}

	if h.wsHub != nil {
		h.wsHub.SendCollectionUpdate("cleared", map[string]int{"total": 0})
	}
	h.writeJSON(w, http.StatusOK, ActionResponse{Success: true, Message: "Cleared all extracted tickets"})
}

// TicketsHandler returns the collected tickets in collection order
func (h *APIHandlers) TicketsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tickets := h.extractor.Tickets()
	if table := r.URL.Query().Get("table"); table != "" {
		filtered := tickets[:0:0]
		for _, t := range tickets {
			if t.TableType == table {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(tickets),
		"tickets": tickets,
	})
}

// SettingsHandler reads or replaces the operator settings
func (h *APIHandlers) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, h.settings.Current())
	case http.MethodPut, http.MethodPost:
		settings := h.settings.Current()
		if err := h.decode(w, r, &settings); err != nil {
			return
		}
		if err := h.settings.Replace(settings); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, h.settings.Current())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// FiltersHandler lists, adds, updates and removes filter clauses.
// POST with ?quick=<name> adds a canned filter set.
func (h *APIHandlers) FiltersHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	switch r.Method {
	case http.MethodGet:
		h.writeFilters(w)

	case http.MethodPost:
		if quick := r.URL.Query().Get("quick"); quick != "" {
			if _, err := h.settings.AddQuickFilter(quick); err != nil {
				h.writeError(w, err)
				return
			}
			h.writeFilters(w)
			return
		}
		var clause models.FilterClause
		if err := h.decode(w, r, &clause); err != nil {
			return
		}
		added, err := h.settings.AddFilter(clause)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, added)

	case http.MethodPut:
		var clause models.FilterClause
		if err := h.decode(w, r, &clause); err != nil {
			return
		}
		if id == "" {
			id = clause.ID
		}
		if err := h.settings.UpdateFilter(id, clause); err != nil {
			h.writeError(w, err)
			return
		}
		h.writeFilters(w)

	case http.MethodDelete:
		var err error
		if id == "" {
			err = h.settings.ClearFilters()
		} else {
			err = h.settings.RemoveFilter(id)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeFilters(w)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// AssessHandler classifies a posted page without extracting from it
func (h *APIHandlers) AssessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PageRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}
	if req.HTML == "" {
		http.Error(w, "html is required", http.StatusBadRequest)
		return
	}

	assessment, err := h.assessor.AssessPage(req.HTML, req.URL)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to assess page")
		http.Error(w, "Failed to assess page", http.StatusInternalServerError)
		return
	}

	h.logger.Info().
		Str("url", req.URL).
		Str("page_type", assessment.PageType).
		Str("confidence", assessment.Confidence).
		Msg("Page assessed")

	h.writeJSON(w, http.StatusOK, assessment)
}

func (h *APIHandlers) writeFilters(w http.ResponseWriter) {
	settings := h.settings.Current()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"filters": settings.Filters,
		"query":   query.Compile(settings.Filters),
	})
}

func (h *APIHandlers) testDatabaseConnection() bool {
	if h.storage == nil {
		return false
	}
	_, err := h.storage.GetLastUpdate()
	return err == nil
}

func (h *APIHandlers) broadcastResult(eventType string, result *models.ExtractionResult) {
	if h.wsHub != nil {
		h.wsHub.SendCollectionUpdate(eventType, result)
	}
}

// decode reads a JSON body, answering 400 itself on failure
func (h *APIHandlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return err
	}
	return nil
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes
func (h *APIHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNoTickets):
		status = http.StatusConflict
	}

	var extErr *common.ExtractorError
	if errors.As(err, &extErr) && extErr.Type == common.ErrorTypeConfiguration {
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
	}

	h.writeJSON(w, status, ActionResponse{Success: false, Message: strings.TrimSpace(err.Error())})
}
