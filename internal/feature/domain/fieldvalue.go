package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldValue is the tagged variant behind a custom field's raw value. Only
// the number variant participates in limit comparisons; every other variant
// rejects numeric use at validation time.
type FieldValue struct {
	Type       FieldType
	Number     float64
	Text       string
	Bool       bool
	Date       time.Time
	Enum       string
	Structured map[string]any
}

// ParseFieldValue interprets a raw string according to the field type.
func ParseFieldValue(fieldType FieldType, raw string) (FieldValue, error) {
	raw = strings.TrimSpace(raw)
	switch fieldType {
	case FieldTypeNumber:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("parse number %q: %w", raw, err)
		}
		return FieldValue{Type: FieldTypeNumber, Number: parsed}, nil
	case FieldTypeString:
		return FieldValue{Type: FieldTypeString, Text: raw}, nil
	case FieldTypeBoolean:
		parsed, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return FieldValue{}, fmt.Errorf("parse boolean %q: %w", raw, err)
		}
		return FieldValue{Type: FieldTypeBoolean, Bool: parsed}, nil
	case FieldTypeDate:
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return FieldValue{}, fmt.Errorf("parse date %q: %w", raw, err)
		}
		return FieldValue{Type: FieldTypeDate, Date: parsed.UTC()}, nil
	case FieldTypeEnum:
		if raw == "" {
			return FieldValue{}, fmt.Errorf("empty enum value")
		}
		return FieldValue{Type: FieldTypeEnum, Enum: raw}, nil
	case FieldTypeStructured:
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return FieldValue{}, fmt.Errorf("parse structured value: %w", err)
		}
		return FieldValue{Type: FieldTypeStructured, Structured: payload}, nil
	default:
		return FieldValue{}, fmt.Errorf("unknown field type %q", fieldType)
	}
}

// ValidateAgainst checks the value against the owning field's constraints.
func (v FieldValue) ValidateAgainst(field *CustomField) error {
	if v.Type != field.DataType {
		return fmt.Errorf("value type %q does not match field type %q", v.Type, field.DataType)
	}
	switch v.Type {
	case FieldTypeNumber:
		if v.Number == UnlimitedValue {
			return nil
		}
		if field.MinValue != nil && v.Number < *field.MinValue {
			return fmt.Errorf("value %v below minimum %v", v.Number, *field.MinValue)
		}
		if field.MaxValue != nil && v.Number > *field.MaxValue {
			return fmt.Errorf("value %v above maximum %v", v.Number, *field.MaxValue)
		}
	case FieldTypeEnum:
		allowed, err := field.AllowedEnumValues()
		if err != nil {
			return err
		}
		for _, candidate := range allowed {
			if candidate == v.Enum {
				return nil
			}
		}
		return fmt.Errorf("enum value %q not in allowed set", v.Enum)
	}
	return nil
}

// IsUnlimited reports whether a numeric value carries the unlimited sentinel.
func (v FieldValue) IsUnlimited() bool {
	return v.Type == FieldTypeNumber && v.Number == UnlimitedValue
}

// Raw renders the value back to its canonical string form for persistence.
func (v FieldValue) Raw() string {
	switch v.Type {
	case FieldTypeNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case FieldTypeString:
		return v.Text
	case FieldTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case FieldTypeDate:
		return v.Date.UTC().Format(time.RFC3339)
	case FieldTypeEnum:
		return v.Enum
	case FieldTypeStructured:
		encoded, err := json.Marshal(v.Structured)
		if err != nil {
			return "{}"
		}
		return string(encoded)
	default:
		return ""
	}
}

// AllowedEnumValues decodes the field's enum value set.
func (f *CustomField) AllowedEnumValues() ([]string, error) {
	if len(f.EnumValues) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(f.EnumValues, &values); err != nil {
		return nil, fmt.Errorf("decode enum values: %w", err)
	}
	return values, nil
}
