package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"slices"
)

// TableTypeKey is the transient tag attached to records during multi-table extraction
const TableTypeKey = "_table_type"

// SysIDField is the dedup key of every ticket
const SysIDField = "sys_id"

// ValueKind distinguishes plain values from host reference/choice pairs
type ValueKind int

const (
	// KindScalar is a plain value
	KindScalar ValueKind = iota
	// KindReference is a {value, display_value} pair
	KindReference
)

// FieldValue is a single raw field as delivered by the host system: either a
// scalar or a reference/choice pair.
type FieldValue struct {
	Kind    ValueKind
	Value   string
	Display string
}

// Scalar builds a plain field value
func Scalar(v string) FieldValue {
	return FieldValue{Kind: KindScalar, Value: v}
}

// Reference builds a {value, display_value} field value
func Reference(value, display string) FieldValue {
	return FieldValue{Kind: KindReference, Value: value, Display: display}
}

// UnmarshalJSON decodes strings, numbers, booleans, null and
// {value, display_value} objects.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Scalar("")
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Scalar(s)
		return nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*f = FieldValue{
			Kind:    KindReference,
			Value:   rawToString(obj["value"]),
			Display: rawToString(obj["display_value"]),
		}
		return nil
	case '[':
		// list values (e.g. glide_list) are kept as their raw JSON text
		*f = Scalar(string(data))
		return nil
	default:
		*f = Scalar(rawToString(data))
		return nil
	}
}

// MarshalJSON writes scalars as strings and references as host-style objects
func (f FieldValue) MarshalJSON() ([]byte, error) {
	if f.Kind == KindReference {
		return json.Marshal(map[string]string{
			"value":         f.Value,
			"display_value": f.Display,
		})
	}
	return json.Marshal(f.Value)
}

func rawToString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if raw[0] == '{' {
		// nested reference, e.g. a link object; keep its value
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			if v, ok := obj["display_value"]; ok {
				return rawToString(v)
			}
			return rawToString(obj["value"])
		}
	}
	// numbers and booleans keep their JSON text; large integer ids survive intact
	return string(raw)
}

// RawRecord is an untyped host record: field key to raw value, plus the
// transient table tag.
type RawRecord struct {
	Fields    map[string]FieldValue
	TableType string
}

// NewRawRecord creates an empty raw record
func NewRawRecord() RawRecord {
	return RawRecord{Fields: make(map[string]FieldValue)}
}

// Set stores a scalar value
func (r RawRecord) Set(field, value string) {
	r.Fields[field] = Scalar(value)
}

// SysID returns the raw identifier of the record, or "" when absent
func (r RawRecord) SysID() string {
	v, ok := r.Fields[SysIDField]
	if !ok {
		return ""
	}
	return v.Value
}

// ContentKey is a short stable digest of the record's fields, used to key
// records the host returned without an identifier
func (r RawRecord) ContentKey() string {
	h := sha256.New()
	for _, k := range slices.Sorted(maps.Keys(r.Fields)) {
		v := r.Fields[k]
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(v.Value))
		h.Write([]byte{0})
		h.Write([]byte(v.Display))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// UnmarshalJSON decodes a host JSON record object
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	fields := make(map[string]FieldValue)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Fields = fields
	if tag, ok := fields[TableTypeKey]; ok {
		r.TableType = tag.Value
		delete(r.Fields, TableTypeKey)
	}
	return nil
}

// Ticket is a canonical, normalized ticket restricted to the selected fields
type Ticket struct {
	SysID     string            `json:"sys_id"`
	TableType string            `json:"_table_type,omitempty"`
	Values    map[string]string `json:"values"`
}

// Get returns the value of a field, with sys_id served from the identifier
func (t Ticket) Get(field string) string {
	if field == SysIDField {
		return t.SysID
	}
	return t.Values[field]
}
