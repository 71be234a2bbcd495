package models

import (
	"fmt"
	"strings"
)

// Operator is a filter comparison understood by the host query grammar
type Operator string

const (
	OpContains   Operator = "CONTAINS"
	OpEquals     Operator = "EQUALS"
	OpNotEquals  Operator = "NOT_EQUALS"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT_IN"
	OpIsEmpty    Operator = "IS_EMPTY"
	OpIsNotEmpty Operator = "IS_NOT_EMPTY"
	OpGT         Operator = "GT"
	OpLT         Operator = "LT"
	OpGTE        Operator = "GTE"
	OpLTE        Operator = "LTE"
)

// operatorAliases maps every accepted spelling to its operator. The host
// symbols are what older saved settings contain.
var operatorAliases = map[string]Operator{
	"CONTAINS":     OpContains,
	"LIKE":         OpContains,
	"EQUALS":       OpEquals,
	"=":            OpEquals,
	"NOT_EQUALS":   OpNotEquals,
	"!=":           OpNotEquals,
	"STARTS_WITH":  OpStartsWith,
	"STARTSWITH":   OpStartsWith,
	"ENDS_WITH":    OpEndsWith,
	"ENDSWITH":     OpEndsWith,
	"IN":           OpIn,
	"NOT_IN":       OpNotIn,
	"NOT IN":       OpNotIn,
	"IS_EMPTY":     OpIsEmpty,
	"ISEMPTY":      OpIsEmpty,
	"IS_NOT_EMPTY": OpIsNotEmpty,
	"ISNOTEMPTY":   OpIsNotEmpty,
	"GT":           OpGT,
	">":            OpGT,
	"LT":           OpLT,
	"<":            OpLT,
	"GTE":          OpGTE,
	">=":           OpGTE,
	"LTE":          OpLTE,
	"<=":           OpLTE,
}

// ParseOperator accepts enum names and host symbols, case-insensitively
func ParseOperator(s string) (Operator, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if op, ok := operatorAliases[key]; ok {
		return op, nil
	}
	return "", fmt.Errorf("unknown filter operator %q", s)
}

// TestsEmptiness reports whether the operator ignores the clause value
func (o Operator) TestsEmptiness() bool {
	return o == OpIsEmpty || o == OpIsNotEmpty
}

// UnmarshalText lets saved settings carry either spelling
func (o *Operator) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*o = OpContains
		return nil
	}
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// FilterClause is one operator-defined filter
type FilterClause struct {
	ID        string   `json:"id"`
	Field     string   `json:"field"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
	DateStart string   `json:"dateStart,omitempty"`
	DateEnd   string   `json:"dateEnd,omitempty"`
}

// HasDateRange reports whether the clause carries a date bound
func (c FilterClause) HasDateRange() bool {
	return c.DateStart != "" || c.DateEnd != ""
}

// IsInert reports whether the clause contributes nothing to a query
func (c FilterClause) IsInert() bool {
	if strings.TrimSpace(c.Field) == "" {
		return true
	}
	if c.Operator.TestsEmptiness() || c.HasDateRange() {
		return false
	}
	return c.Value == ""
}
