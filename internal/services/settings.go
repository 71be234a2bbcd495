package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	. "snow-extractor/internal/common"
	"snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
)

// Settings store keys
const (
	KeySelectedFields = "selectedFields"
	KeySelectedTables = "selectedTables"
	KeyFilters        = "filters"
	KeyTheme          = "currentTheme"
	KeyMaxRecords     = "maxRecords"
)

// Quick filter names
const (
	QuickMyTickets    = "my_tickets"
	QuickOpen         = "open"
	QuickHighPriority = "high_priority"
)

// QuickFilters are the canned filter sets offered to the operator
var QuickFilters = map[string][]models.FilterClause{
	QuickMyTickets: {
		{Field: "assigned_to", Operator: models.OpEquals, Value: "javascript:gs.getUserID()"},
	},
	QuickOpen: {
		{Field: "state", Operator: models.OpNotEquals, Value: "6"},
		{Field: "state", Operator: models.OpNotEquals, Value: "7"},
	},
	QuickHighPriority: {
		{Field: "priority", Operator: models.OpLTE, Value: "2"},
	},
}

// maxRecordsCeiling bounds the per-table record limit an operator may set
const maxRecordsCeiling = 10000

// SettingsService owns the operator's field, table and filter selection and
// writes it back to the store after every mutation.
type SettingsService struct {
	store   interfaces.SettingsStore
	logger  arbor.ILogger
	mu      sync.Mutex
	current models.Settings
}

// NewSettingsService loads settings from store, degrading to defaults for any
// key that is missing or unreadable. A nil store keeps settings in memory.
func NewSettingsService(store interfaces.SettingsStore, logger arbor.ILogger) *SettingsService {
	s := &SettingsService{
		store:  store,
		logger: logger,
	}
	s.current = s.load()
	return s
}

func (s *SettingsService) load() models.Settings {
	settings := models.DefaultSettings()
	if s.store == nil {
		return settings
	}

	var fields []string
	if s.decode(KeySelectedFields, &fields) && len(fields) > 0 {
		settings.SelectedFields = distinct(fields)
	}

	var tables []string
	if s.decode(KeySelectedTables, &tables) && len(tables) > 0 {
		settings.SelectedTables = distinct(tables)
	}

	var filters []models.FilterClause
	if s.decode(KeyFilters, &filters) && filters != nil {
		settings.Filters = filters
	}

	if theme := s.store.Get(KeyTheme, ""); theme != "" {
		settings.Theme = theme
	}

	if raw := s.store.Get(KeyMaxRecords, ""); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			settings.MaxRecords = n
		} else {
			s.logger.Warn().Str("value", raw).Msg("Ignoring invalid stored max records")
		}
	}

	return settings
}

func (s *SettingsService) decode(key string, target interface{}) bool {
	raw := s.store.Get(key, "")
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("Ignoring unreadable stored setting")
		return false
	}
	return true
}

// save writes every key back. Store failures are logged, never returned.
func (s *SettingsService) save() {
	if s.store == nil {
		return
	}

	values := map[string]string{
		KeyTheme:      s.current.Theme,
		KeyMaxRecords: strconv.Itoa(s.current.MaxRecords),
	}
	for key, v := range map[string]interface{}{
		KeySelectedFields: s.current.SelectedFields,
		KeySelectedTables: s.current.SelectedTables,
		KeyFilters:        s.current.Filters,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to encode setting")
			continue
		}
		values[key] = string(data)
	}

	for key, value := range values {
		if err := s.store.Set(key, value); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to save setting")
		}
	}
}

// Current returns a copy of the active settings
func (s *SettingsService) Current() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Replace validates and stores a complete settings value
func (s *SettingsService) Replace(settings models.Settings) error {
	if err := validateFields(settings.SelectedFields); err != nil {
		return err
	}
	if err := validateTables(settings.SelectedTables); err != nil {
		return err
	}
	settings.SelectedFields = distinct(settings.SelectedFields)
	settings.SelectedTables = distinct(settings.SelectedTables)
	if settings.MaxRecords <= 0 || settings.MaxRecords > maxRecordsCeiling {
		return NewValidationError("invalid_max_records", fmt.Sprintf("max records must be between 1 and %d", maxRecordsCeiling))
	}
	if settings.Theme == "" {
		settings.Theme = models.DefaultSettings().Theme
	}
	filters := make([]models.FilterClause, 0, len(settings.Filters))
	for _, f := range settings.Filters {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.Operator == "" {
			f.Operator = models.OpContains
		}
		filters = append(filters, f)
	}
	settings.Filters = filters

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = settings.Clone()
	s.save()
	return nil
}

// SetFields replaces the ordered field selection
func (s *SettingsService) SetFields(fields []string) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	return s.mutate(func(c *models.Settings) error {
		c.SelectedFields = distinct(fields)
		return nil
	})
}

// ToggleField adds a field at the end of the selection or removes it
func (s *SettingsService) ToggleField(field string) error {
	if _, ok := models.LookupField(field); !ok {
		return NewValidationError("unknown_field", fmt.Sprintf("unknown field: %s", field))
	}
	return s.mutate(func(c *models.Settings) error {
		next, removed := without(c.SelectedFields, field)
		if !removed {
			next = append(next, field)
		}
		if len(next) == 0 {
			return NewValidationError("empty_fields", "at least one field must stay selected")
		}
		c.SelectedFields = next
		return nil
	})
}

// SetTables replaces the table selection
func (s *SettingsService) SetTables(tables []string) error {
	if err := validateTables(tables); err != nil {
		return err
	}
	return s.mutate(func(c *models.Settings) error {
		c.SelectedTables = distinct(tables)
		return nil
	})
}

// ToggleTable adds or removes a table; the last table cannot be removed
func (s *SettingsService) ToggleTable(table string) error {
	if _, ok := models.LookupTable(table); !ok {
		return NewValidationError("unknown_table", fmt.Sprintf("unknown table: %s", table))
	}
	return s.mutate(func(c *models.Settings) error {
		next, removed := without(c.SelectedTables, table)
		if !removed {
			next = append(next, table)
		}
		if len(next) == 0 {
			return NewValidationError("empty_tables", "at least one table must stay selected")
		}
		c.SelectedTables = next
		return nil
	})
}

// SetMaxRecords sets the per-table record limit
func (s *SettingsService) SetMaxRecords(n int) error {
	if n <= 0 || n > maxRecordsCeiling {
		return NewValidationError("invalid_max_records", fmt.Sprintf("max records must be between 1 and %d", maxRecordsCeiling))
	}
	return s.mutate(func(c *models.Settings) error {
		c.MaxRecords = n
		return nil
	})
}

// SetTheme records the operator's theme name
func (s *SettingsService) SetTheme(theme string) error {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return NewValidationError("empty_theme", "theme name is required")
	}
	return s.mutate(func(c *models.Settings) error {
		c.Theme = theme
		return nil
	})
}

// AddFilter appends a clause with a fresh id and returns it
func (s *SettingsService) AddFilter(clause models.FilterClause) (models.FilterClause, error) {
	clause.ID = uuid.NewString()
	clause.Field = strings.TrimSpace(clause.Field)
	if clause.Operator == "" {
		clause.Operator = models.OpContains
	}
	err := s.mutate(func(c *models.Settings) error {
		c.Filters = append(c.Filters, clause)
		return nil
	})
	return clause, err
}

// UpdateFilter replaces the clause with the given id, keeping the id
func (s *SettingsService) UpdateFilter(id string, clause models.FilterClause) error {
	clause.ID = id
	if clause.Operator == "" {
		clause.Operator = models.OpContains
	}
	return s.mutate(func(c *models.Settings) error {
		for i := range c.Filters {
			if c.Filters[i].ID == id {
				c.Filters[i] = clause
				return nil
			}
		}
		return filterNotFound(id)
	})
}

// SetDateRange sets or clears the date bounds of a clause
func (s *SettingsService) SetDateRange(id, start, end string) error {
	return s.mutate(func(c *models.Settings) error {
		for i := range c.Filters {
			if c.Filters[i].ID == id {
				c.Filters[i].DateStart = strings.TrimSpace(start)
				c.Filters[i].DateEnd = strings.TrimSpace(end)
				return nil
			}
		}
		return filterNotFound(id)
	})
}

// RemoveFilter deletes the clause with the given id
func (s *SettingsService) RemoveFilter(id string) error {
	return s.mutate(func(c *models.Settings) error {
		for i := range c.Filters {
			if c.Filters[i].ID == id {
				c.Filters = append(c.Filters[:i], c.Filters[i+1:]...)
				return nil
			}
		}
		return filterNotFound(id)
	})
}

// ClearFilters deletes every clause
func (s *SettingsService) ClearFilters() error {
	return s.mutate(func(c *models.Settings) error {
		c.Filters = []models.FilterClause{}
		return nil
	})
}

// AddQuickFilter appends a canned filter set and returns the added clauses
func (s *SettingsService) AddQuickFilter(name string) ([]models.FilterClause, error) {
	preset, ok := QuickFilters[name]
	if !ok {
		return nil, NewValidationError("unknown_quick_filter", fmt.Sprintf("unknown quick filter: %s", name))
	}

	added := make([]models.FilterClause, 0, len(preset))
	for _, clause := range preset {
		clause.ID = uuid.NewString()
		added = append(added, clause)
	}

	err := s.mutate(func(c *models.Settings) error {
		c.Filters = append(c.Filters, added...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// mutate applies fn to a copy of the settings and commits it on success
func (s *SettingsService) mutate(fn func(c *models.Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.current = next
	s.save()
	return nil
}

func validateFields(fields []string) error {
	if len(fields) == 0 {
		return NewValidationError("empty_fields", "at least one field must be selected")
	}
	for _, f := range fields {
		if _, ok := models.LookupField(f); !ok {
			return NewValidationError("unknown_field", fmt.Sprintf("unknown field: %s", f))
		}
	}
	return nil
}

func validateTables(tables []string) error {
	if len(tables) == 0 {
		return NewValidationError("empty_tables", "at least one table must be selected")
	}
	for _, t := range tables {
		if _, ok := models.LookupTable(t); !ok {
			return NewValidationError("unknown_table", fmt.Sprintf("unknown table: %s", t))
		}
	}
	return nil
}

// distinct drops repeated keys, keeping first-seen order
func distinct(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func filterNotFound(id string) error {
	return NewValidationError("filter_not_found", fmt.Sprintf("no filter with id %s", id))
}

func without(list []string, item string) ([]string, bool) {
	out := make([]string, 0, len(list))
	removed := false
	for _, v := range list {
		if v == item {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}
