package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldKind controls how a stringified value is coerced back onto an entity.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindDate
	KindStatus
	KindRef
)

// Field is one loggable attribute of an entity with its stringified value.
// A nil Value means the attribute is unset.
type Field struct {
	Name  string
	Kind  FieldKind
	Value *string
}

// Tracked is implemented by every entity the change log records.
type Tracked interface {
	EntityType() EntityType
	EntityID() uuid.UUID
	DisplayName() string
	Fields() []Field
	SetField(name string, value *string) error
}

// FieldValue returns the stringified value of name, and whether the field exists.
func FieldValue(t Tracked, name string) (*string, bool) {
	for _, f := range t.Fields() {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

const dateLayout = "2006-01-02"

func strValue(s string) *string {
	return &s
}

func optStrValue(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func numberValue(f float64) *string {
	v := strconv.FormatFloat(f, 'f', -1, 64)
	return &v
}

func optNumberValue(f *float64) *string {
	if f == nil {
		return nil
	}
	return numberValue(*f)
}

func dateValue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339Nano)
	return &v
}

func refValue(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}

func requireValue(name string, value *string) (string, error) {
	if value == nil {
		return "", Validationf("field %s cannot be null", name)
	}
	return *value, nil
}

// ParseDate accepts RFC 3339 timestamps and plain ISO dates.
func ParseDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*value)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, Validationf("invalid date %q", raw)
}

// ParseNumber parses a float field value.
func ParseNumber(value *string) (*float64, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*value), 64)
	if err != nil {
		return nil, Validationf("invalid number %q", *value)
	}
	return &f, nil
}

func parseRef(value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*value))
	if err != nil {
		return nil, Validationf("invalid identifier %q", *value)
	}
	return &id, nil
}

func unknownField(t EntityType, name string) error {
	return Validationf("%s has no field %q", t, name)
}
