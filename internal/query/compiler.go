// Package query compiles filter clauses into the host query grammar and
// applies them to collected tickets.
package query

import (
	"fmt"
	"strings"

	"snow-extractor/internal/models"
)

// queryJoin is logical AND in the host query grammar
const queryJoin = "^"

// operatorTokens is the single mapping from filter operators to host grammar
// tokens. Values are never escaped, so a value containing ^ or = changes the
// meaning of the query.
var operatorTokens = map[models.Operator]string{
	models.OpContains:   "LIKE",
	models.OpStartsWith: "STARTSWITH",
	models.OpEndsWith:   "ENDSWITH",
	models.OpIn:         "IN",
	models.OpNotIn:      "NOT IN",
	models.OpIsEmpty:    "ISEMPTY",
	models.OpIsNotEmpty: "ISNOTEMPTY",
	models.OpEquals:     "=",
	models.OpNotEquals:  "!=",
	models.OpGT:         ">",
	models.OpLT:         "<",
	models.OpGTE:        ">=",
	models.OpLTE:        "<=",
}

// OperatorToken returns the host grammar token for an operator. Operators
// outside the table pass through literally.
func OperatorToken(op models.Operator) string {
	if op == "" {
		return operatorTokens[models.OpContains]
	}
	if token, ok := operatorTokens[op]; ok {
		return token
	}
	return string(op)
}

// Compile turns filter clauses into an encoded query string. Inert
// clauses are dropped; an empty result means no filter.
func Compile(clauses []models.FilterClause) string {
	parts := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		if clause.IsInert() {
			continue
		}
		parts = append(parts, compileClause(clause)...)
	}
	return strings.Join(parts, queryJoin)
}

func compileClause(clause models.FilterClause) []string {
	field := strings.TrimSpace(clause.Field)

	if clause.HasDateRange() {
		return compileDateRange(field, clause.DateStart, clause.DateEnd)
	}

	token := OperatorToken(clause.Operator)
	if clause.Operator.TestsEmptiness() {
		return []string{field + token}
	}
	return []string{field + token + clause.Value}
}

// compileDateRange emits field >= start-of-day and field <= end-of-day bounds
func compileDateRange(field, start, end string) []string {
	var parts []string
	if start != "" {
		parts = append(parts, field+">="+dateGenerate(start, "00:00:00"))
	}
	if end != "" {
		parts = append(parts, field+"<="+dateGenerate(end, "23:59:59"))
	}
	return parts
}

func dateGenerate(date, clock string) string {
	return fmt.Sprintf("javascript:gs.dateGenerate('%s','%s')", date, clock)
}

// Matches applies filter clauses to an already collected ticket,
// case-insensitively. Inert clauses match everything.
func Matches(ticket models.Ticket, clauses []models.FilterClause) bool {
	for _, clause := range clauses {
		if clause.IsInert() {
			continue
		}
		if !matchClause(ticket, clause) {
			return false
		}
	}
	return true
}

func matchClause(ticket models.Ticket, clause models.FilterClause) bool {
	fieldValue := strings.ToLower(ticket.Get(clause.Field))
	filterValue := strings.ToLower(clause.Value)

	if clause.HasDateRange() {
		if clause.DateStart != "" && fieldValue < strings.ToLower(clause.DateStart) {
			return false
		}
		// end date is inclusive of the whole day
		if clause.DateEnd != "" && fieldValue > strings.ToLower(clause.DateEnd)+"\xff" {
			return false
		}
		return true
	}

	switch clause.Operator {
	case models.OpContains, "":
		return strings.Contains(fieldValue, filterValue)
	case models.OpEquals:
		return fieldValue == filterValue
	case models.OpNotEquals:
		return fieldValue != filterValue
	case models.OpStartsWith:
		return strings.HasPrefix(fieldValue, filterValue)
	case models.OpEndsWith:
		return strings.HasSuffix(fieldValue, filterValue)
	case models.OpIn:
		return inList(fieldValue, filterValue)
	case models.OpNotIn:
		return !inList(fieldValue, filterValue)
	case models.OpIsEmpty:
		return fieldValue == ""
	case models.OpIsNotEmpty:
		return fieldValue != ""
	case models.OpGT:
		return fieldValue > filterValue
	case models.OpLT:
		return fieldValue < filterValue
	case models.OpGTE:
		return fieldValue >= filterValue
	case models.OpLTE:
		return fieldValue <= filterValue
	default:
		return true
	}
}

func inList(value, list string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}
