package entity

import (
	"time"

	"github.com/google/uuid"
)

type Show struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Client    string     `json:"client"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

var _ Tracked = (*Show)(nil)

func (s *Show) EntityType() EntityType { return EntityShow }
func (s *Show) EntityID() uuid.UUID    { return s.ID }
func (s *Show) DisplayName() string    { return s.Name }

func (s *Show) Fields() []Field {
	return []Field{
		{Name: "name", Kind: KindString, Value: strValue(s.Name)},
		{Name: "client", Kind: KindString, Value: strValue(s.Client)},
		{Name: "status", Kind: KindString, Value: strValue(s.Status)},
		{Name: "startDate", Kind: KindDate, Value: dateValue(s.StartDate)},
		{Name: "endDate", Kind: KindDate, Value: dateValue(s.EndDate)},
	}
}

func (s *Show) SetField(name string, value *string) error {
	var err error
	switch name {
	case "name":
		s.Name, err = requireValue(name, value)
	case "client":
		s.Client, err = requireValue(name, value)
	case "status":
		s.Status, err = requireValue(name, value)
	case "startDate":
		s.StartDate, err = ParseDate(value)
	case "endDate":
		s.EndDate, err = ParseDate(value)
	default:
		return unknownField(EntityShow, name)
	}
	return err
}

type CreateShowRequest struct {
	ID        *uuid.UUID `json:"id,omitempty"`
	Name      string     `json:"name"`
	Client    string     `json:"client"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// ShowPatch carries the fields a caller wants changed; nil means untouched.
type ShowPatch struct {
	Name      *string    `json:"name,omitempty"`
	Client    *string    `json:"client,omitempty"`
	Status    *string    `json:"status,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

func (p ShowPatch) Empty() bool {
	return p.Name == nil && p.Client == nil && p.Status == nil && p.StartDate == nil && p.EndDate == nil
}
