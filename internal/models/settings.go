package models

import "slices"

// Settings is the operator-selected configuration of an extraction session
type Settings struct {
	SelectedFields []string       `json:"selectedFields"`
	SelectedTables []string       `json:"selectedTables"`
	Filters        []FilterClause `json:"filters"`
	MaxRecords     int            `json:"maxRecords"`
	Theme          string         `json:"currentTheme"`
}

// DefaultSettings returns the built-in selection used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		SelectedFields: []string{"number", "short_description", "state", "priority", "assigned_to", "assignment_group", "opened_at", "sys_id"},
		SelectedTables: []string{"incident"},
		Filters:        []FilterClause{},
		MaxRecords:     100,
		Theme:          "wholefoodsGreen",
	}
}

// Clone returns a deep copy
func (s Settings) Clone() Settings {
	c := s
	c.SelectedFields = slices.Clone(s.SelectedFields)
	c.SelectedTables = slices.Clone(s.SelectedTables)
	c.Filters = slices.Clone(s.Filters)
	return c
}
