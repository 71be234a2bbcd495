package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"snow-extractor/internal/models"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		clauses []models.FilterClause
		want    string
	}{
		{
			name: "comparison operators joined with caret",
			clauses: []models.FilterClause{
				{Field: "state", Operator: models.OpNotEquals, Value: "7"},
				{Field: "priority", Operator: models.OpLTE, Value: "2"},
			},
			want: "state!=7^priority<=2",
		},
		{
			name:    "contains maps to LIKE",
			clauses: []models.FilterClause{{Field: "short_description", Operator: models.OpContains, Value: "network"}},
			want:    "short_descriptionLIKEnetwork",
		},
		{
			name:    "empty operator defaults to LIKE",
			clauses: []models.FilterClause{{Field: "category", Value: "Hardware"}},
			want:    "categoryLIKEHardware",
		},
		{
			name:    "not in keeps the space",
			clauses: []models.FilterClause{{Field: "state", Operator: models.OpNotIn, Value: "6,7"}},
			want:    "stateNOT IN6,7",
		},
		{
			name: "emptiness operators omit the value",
			clauses: []models.FilterClause{
				{Field: "assigned_to", Operator: models.OpIsEmpty},
				{Field: "caller_id", Operator: models.OpIsNotEmpty, Value: "ignored"},
			},
			want: "assigned_toISEMPTY^caller_idISNOTEMPTY",
		},
		{
			name: "inert clauses are dropped",
			clauses: []models.FilterClause{
				{Field: "state", Operator: models.OpEquals, Value: ""},
				{Field: "priority", Operator: models.OpEquals, Value: "1"},
				{Field: "", Operator: models.OpEquals, Value: "x"},
			},
			want: "priority=1",
		},
		{
			name: "all inert compiles to empty",
			clauses: []models.FilterClause{
				{Field: "state", Operator: models.OpEquals},
				{Field: "number", Operator: models.OpStartsWith},
			},
			want: "",
		},
		{
			name:    "no clauses",
			clauses: nil,
			want:    "",
		},
		{
			name:    "two sided date range",
			clauses: []models.FilterClause{{Field: "opened_at", DateStart: "2024-01-01", DateEnd: "2024-01-31"}},
			want:    "opened_at>=javascript:gs.dateGenerate('2024-01-01','00:00:00')^opened_at<=javascript:gs.dateGenerate('2024-01-31','23:59:59')",
		},
		{
			name:    "open ended date range",
			clauses: []models.FilterClause{{Field: "sys_created_on", DateEnd: "2024-02-01"}},
			want:    "sys_created_on<=javascript:gs.dateGenerate('2024-02-01','23:59:59')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compile(tt.clauses))
		})
	}
}

func TestOperatorToken(t *testing.T) {
	assert.Equal(t, "STARTSWITH", OperatorToken(models.OpStartsWith))
	assert.Equal(t, "ENDSWITH", OperatorToken(models.OpEndsWith))
	assert.Equal(t, ">=", OperatorToken(models.OpGTE))
	assert.Equal(t, "LIKE", OperatorToken(""))
	assert.Equal(t, "SAMEAS", OperatorToken(models.Operator("SAMEAS")))
}

func TestMatches(t *testing.T) {
	ticket := models.Ticket{
		SysID: "abc",
		Values: map[string]string{
			"number":            "INC0010001",
			"short_description": "Network outage in Building 4",
			"state":             "In Progress",
			"priority":          "2",
			"assigned_to":       "",
			"opened_at":         "2024-01-31 17:45:00",
		},
	}

	tests := []struct {
		name    string
		clauses []models.FilterClause
		want    bool
	}{
		{"no clauses", nil, true},
		{"contains is case insensitive", []models.FilterClause{{Field: "short_description", Operator: models.OpContains, Value: "NETWORK"}}, true},
		{"equals", []models.FilterClause{{Field: "state", Operator: models.OpEquals, Value: "in progress"}}, true},
		{"not equals", []models.FilterClause{{Field: "state", Operator: models.OpNotEquals, Value: "In Progress"}}, false},
		{"starts with", []models.FilterClause{{Field: "number", Operator: models.OpStartsWith, Value: "inc"}}, true},
		{"ends with", []models.FilterClause{{Field: "number", Operator: models.OpEndsWith, Value: "0002"}}, false},
		{"in list", []models.FilterClause{{Field: "priority", Operator: models.OpIn, Value: "1, 2"}}, true},
		{"not in list", []models.FilterClause{{Field: "priority", Operator: models.OpNotIn, Value: "1,2"}}, false},
		{"is empty", []models.FilterClause{{Field: "assigned_to", Operator: models.OpIsEmpty}}, true},
		{"is not empty", []models.FilterClause{{Field: "assigned_to", Operator: models.OpIsNotEmpty}}, false},
		{"sys_id is addressable", []models.FilterClause{{Field: "sys_id", Operator: models.OpEquals, Value: "abc"}}, true},
		{"inert clause matches", []models.FilterClause{{Field: "state", Operator: models.OpEquals}}, true},
		{"date end is inclusive", []models.FilterClause{{Field: "opened_at", DateStart: "2024-01-01", DateEnd: "2024-01-31"}}, true},
		{"date before start", []models.FilterClause{{Field: "opened_at", DateStart: "2024-02-01"}}, false},
		{"all clauses must hold", []models.FilterClause{
			{Field: "priority", Operator: models.OpLTE, Value: "2"},
			{Field: "state", Operator: models.OpEquals, Value: "closed"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(ticket, tt.clauses))
		})
	}
}
