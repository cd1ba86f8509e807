package store

import (
	"encoding/json"
	"time"

	"formbuilder/api/internal/forms"
)

type User struct {
	ID         string
	Name       string
	Email      string
	Privileges []string
	CreatedAt  time.Time
}

type DeliveryOption struct {
	EmailAddress   string
	EmailSubjectEn string
	EmailSubjectFr string
}

// Template is a templates row joined with its delivery option.
type Template struct {
	ID                string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Name              string
	JSONConfig        json.RawMessage
	IsPublished       bool
	DeliveryOption    *DeliveryOption
	SecurityAttribute string
	FormPurpose       string
	ClosingDate       *time.Time
	TTL               *time.Time
}

// Deleted reports whether the row carries a soft-delete marker.
func (t Template) Deleted() bool {
	return t.TTL != nil
}

// Record translates a stored row into the shape handed to callers.
func (t Template) Record() forms.Record {
	record := forms.Record{
		ID:                t.ID,
		Name:              t.Name,
		Form:              t.JSONConfig,
		IsPublished:       t.IsPublished,
		SecurityAttribute: forms.SecurityAttribute(t.SecurityAttribute),
		FormPurpose:       t.FormPurpose,
	}
	if !t.CreatedAt.IsZero() {
		createdAt := t.CreatedAt
		record.CreatedAt = &createdAt
	}
	if !t.UpdatedAt.IsZero() {
		updatedAt := t.UpdatedAt
		record.UpdatedAt = &updatedAt
	}
	if t.DeliveryOption != nil {
		record.DeliveryOption = &forms.DeliveryOption{
			EmailAddress:   t.DeliveryOption.EmailAddress,
			EmailSubjectEn: t.DeliveryOption.EmailSubjectEn,
			EmailSubjectFr: t.DeliveryOption.EmailSubjectFr,
		}
	}
	if t.ClosingDate != nil {
		closingDate := *t.ClosingDate
		record.ClosingDate = &closingDate
	}
	if record.SecurityAttribute == "" {
		record.SecurityAttribute = forms.Unclassified
	}
	return record
}

func (u User) Owner() forms.Owner {
	return forms.Owner{ID: u.ID, Name: u.Name, Email: u.Email}
}

type NewTemplate struct {
	OwnerID           string
	JSONConfig        json.RawMessage
	Name              string
	DeliveryOption    *forms.DeliveryOption
	SecurityAttribute string
	FormPurpose       string
}

type TemplateFilter struct {
	// OwnerID restricts the listing to templates the user is assigned to.
	OwnerID   string
	Published *bool
	Sort      forms.SortOrder
}

type AuditEvent struct {
	ID         int64
	ActorID    string
	TargetType string
	TargetID   string
	Event      string
	Detail     string
	CreatedAt  time.Time
}

type FormResponse struct {
	ID         string
	TemplateID string
	Status     string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

const (
	ResponseStatusNew        = "new"
	ResponseStatusDownloaded = "downloaded"
	ResponseStatusConfirmed  = "confirmed"
	ResponseStatusProblem    = "problem"
)
