package entity

import (
	"time"

	"github.com/google/uuid"
)

type Shot struct {
	ID            uuid.UUID  `json:"id"`
	ShowID        uuid.UUID  `json:"showId"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	FrameIn       *float64   `json:"frameIn,omitempty"`
	FrameOut      *float64   `json:"frameOut,omitempty"`
	Status        string     `json:"status"`
	ClientDueDate *time.Time `json:"clientDueDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

var _ Tracked = (*Shot)(nil)

func (s *Shot) EntityType() EntityType { return EntityShot }
func (s *Shot) EntityID() uuid.UUID    { return s.ID }
func (s *Shot) DisplayName() string    { return s.Name }

func (s *Shot) Fields() []Field {
	return []Field{
		{Name: "name", Kind: KindString, Value: strValue(s.Name)},
		{Name: "description", Kind: KindString, Value: strValue(s.Description)},
		{Name: "frameIn", Kind: KindNumber, Value: optNumberValue(s.FrameIn)},
		{Name: "frameOut", Kind: KindNumber, Value: optNumberValue(s.FrameOut)},
		{Name: "status", Kind: KindString, Value: strValue(s.Status)},
		{Name: "clientDueDate", Kind: KindDate, Value: dateValue(s.ClientDueDate)},
	}
}

func (s *Shot) SetField(name string, value *string) error {
	var err error
	switch name {
	case "name":
		s.Name, err = requireValue(name, value)
	case "description":
		if value == nil {
			s.Description = ""
			return nil
		}
		s.Description = *value
	case "frameIn":
		s.FrameIn, err = ParseNumber(value)
	case "frameOut":
		s.FrameOut, err = ParseNumber(value)
	case "status":
		s.Status, err = requireValue(name, value)
	case "clientDueDate":
		s.ClientDueDate, err = ParseDate(value)
	default:
		return unknownField(EntityShot, name)
	}
	return err
}

type CreateShotRequest struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	ShowID        uuid.UUID  `json:"showId"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	FrameIn       *float64   `json:"frameIn,omitempty"`
	FrameOut      *float64   `json:"frameOut,omitempty"`
	Status        string     `json:"status"`
	ClientDueDate *time.Time `json:"clientDueDate,omitempty"`
}

type ShotPatch struct {
	Name          *string    `json:"name,omitempty"`
	Description   *string    `json:"description,omitempty"`
	FrameIn       *float64   `json:"frameIn,omitempty"`
	FrameOut      *float64   `json:"frameOut,omitempty"`
	Status        *string    `json:"status,omitempty"`
	ClientDueDate *time.Time `json:"clientDueDate,omitempty"`
}

func (p ShotPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.FrameIn == nil && p.FrameOut == nil &&
		p.Status == nil && p.ClientDueDate == nil
}
