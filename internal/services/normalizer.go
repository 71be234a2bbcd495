package services

import (
	. "snow-extractor/internal/common"
	"snow-extractor/internal/models"
)

// NormalizeValue flattens a raw field value to a trimmed string. References
// reduce to their display value, then their raw value.
func NormalizeValue(v models.FieldValue) string {
	if v.Kind == models.KindReference {
		if v.Display != "" {
			return CollapseWhitespace(v.Display)
		}
		return CollapseWhitespace(v.Value)
	}
	return CollapseWhitespace(v.Value)
}

// Normalize restricts a raw record to the selected fields and flattens every
// value. Missing fields become empty strings. No identifier is synthesized
// here; a record without sys_id yields a ticket with an empty SysID.
func Normalize(raw models.RawRecord, fields []string) models.Ticket {
	ticket := models.Ticket{
		SysID:     NormalizeValue(raw.Fields[models.SysIDField]),
		TableType: raw.TableType,
		Values:    make(map[string]string, len(fields)),
	}

	for _, field := range fields {
		if field == models.SysIDField {
			continue
		}
		ticket.Values[field] = NormalizeValue(raw.Fields[field])
	}

	return ticket
}
