package entity

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusYTS    TaskStatus = "YTS"    // yet to start
	StatusWIP    TaskStatus = "WIP"    // work in progress
	StatusIntApp TaskStatus = "IntApp" // internally approved
	StatusAWF    TaskStatus = "AWF"    // awaiting feedback (delivered to client)
	StatusCAPP   TaskStatus = "CAPP"   // client approved
	StatusCKB    TaskStatus = "CKB"    // client kickback
	StatusOMIT   TaskStatus = "OMIT"
	StatusHOLD   TaskStatus = "HOLD"
)

// TaskStatuses lists the closed status set in lifecycle order.
var TaskStatuses = []TaskStatus{
	StatusYTS, StatusWIP, StatusIntApp, StatusAWF, StatusCAPP, StatusCKB, StatusOMIT, StatusHOLD,
}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", Validationf("unknown task status %q", raw)
	}
	return s, nil
}

type Task struct {
	ID               uuid.UUID  `json:"id"`
	ShotID           uuid.UUID  `json:"shotId"`
	Department       string     `json:"department"`
	Status           TaskStatus `json:"status"`
	LeadName         *string    `json:"leadName,omitempty"`
	BidDays          *float64   `json:"bidDays,omitempty"`
	InternalDueDate  *time.Time `json:"internalDueDate,omitempty"`
	ClientDueDate    *time.Time `json:"clientDueDate,omitempty"`
	DeliveredVersion *string    `json:"deliveredVersion,omitempty"`
	DeliveredDate    *time.Time `json:"deliveredDate,omitempty"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

var _ Tracked = (*Task)(nil)

func (t *Task) EntityType() EntityType { return EntityTask }
func (t *Task) EntityID() uuid.UUID    { return t.ID }
func (t *Task) DisplayName() string    { return t.Department }

func (t *Task) Fields() []Field {
	return []Field{
		{Name: "department", Kind: KindString, Value: strValue(t.Department)},
		{Name: "status", Kind: KindStatus, Value: strValue(string(t.Status))},
		{Name: "leadName", Kind: KindString, Value: optStrValue(t.LeadName)},
		{Name: "bidDays", Kind: KindNumber, Value: optNumberValue(t.BidDays)},
		{Name: "internalDueDate", Kind: KindDate, Value: dateValue(t.InternalDueDate)},
		{Name: "clientDueDate", Kind: KindDate, Value: dateValue(t.ClientDueDate)},
		{Name: "deliveredVersion", Kind: KindString, Value: optStrValue(t.DeliveredVersion)},
		{Name: "deliveredDate", Kind: KindDate, Value: dateValue(t.DeliveredDate)},
		{Name: "notes", Kind: KindString, Value: strValue(t.Notes)},
	}
}

// SetField writes a stringified value without consulting the transition
// table; status is only checked for membership in the closed set.
func (t *Task) SetField(name string, value *string) error {
	var err error
	switch name {
	case "department":
		t.Department, err = requireValue(name, value)
	case "status":
		var raw string
		if raw, err = requireValue(name, value); err == nil {
			t.Status, err = ParseTaskStatus(raw)
		}
	case "leadName":
		t.LeadName = optStrValue(value)
	case "bidDays":
		t.BidDays, err = ParseNumber(value)
	case "internalDueDate":
		t.InternalDueDate, err = ParseDate(value)
	case "clientDueDate":
		t.ClientDueDate, err = ParseDate(value)
	case "deliveredVersion":
		t.DeliveredVersion = optStrValue(value)
	case "deliveredDate":
		t.DeliveredDate, err = ParseDate(value)
	case "notes":
		if value == nil {
			t.Notes = ""
			return nil
		}
		t.Notes = *value
	default:
		return unknownField(EntityTask, name)
	}
	return err
}

type CreateTaskRequest struct {
	ID              *uuid.UUID `json:"id,omitempty"`
	ShotID          uuid.UUID  `json:"shotId"`
	Department      string     `json:"department"`
	Status          TaskStatus `json:"status"`
	LeadName        *string    `json:"leadName,omitempty"`
	BidDays         *float64   `json:"bidDays,omitempty"`
	InternalDueDate *time.Time `json:"internalDueDate,omitempty"`
	ClientDueDate   *time.Time `json:"clientDueDate,omitempty"`
	Notes           string     `json:"notes"`
}

// TaskPatch is a partial task update. A nil field is left untouched.
type TaskPatch struct {
	Status           *TaskStatus `json:"status,omitempty"`
	LeadName         *string     `json:"leadName,omitempty"`
	BidDays          *float64    `json:"bidDays,omitempty"`
	InternalDueDate  *time.Time  `json:"internalDueDate,omitempty"`
	ClientDueDate    *time.Time  `json:"clientDueDate,omitempty"`
	DeliveredVersion *string     `json:"deliveredVersion,omitempty"`
	Notes            *string     `json:"notes,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.LeadName == nil && p.BidDays == nil && p.InternalDueDate == nil &&
		p.ClientDueDate == nil && p.DeliveredVersion == nil && p.Notes == nil
}
