// Package forms holds the form template records shared by the store, the
// cache and the lifecycle service.
package forms

import (
	"encoding/json"
	"time"
)

type SecurityAttribute string

const (
	Unclassified SecurityAttribute = "Unclassified"
	ProtectedA   SecurityAttribute = "Protected A"
	ProtectedB   SecurityAttribute = "Protected B"
)

func (a SecurityAttribute) Valid() bool {
	switch a {
	case Unclassified, ProtectedA, ProtectedB:
		return true
	default:
		return false
	}
}

// ClosingDateOpen clears a template closing date.
const ClosingDateOpen = "open"

// DeliveryOption routes responses by email. A template without one delivers
// to the vault.
type DeliveryOption struct {
	EmailAddress   string `json:"emailAddress"`
	EmailSubjectEn string `json:"emailSubjectEn,omitempty"`
	EmailSubjectFr string `json:"emailSubjectFr,omitempty"`
}

type Record struct {
	ID                string            `json:"id"`
	CreatedAt         *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time        `json:"updatedAt,omitempty"`
	Name              string            `json:"name"`
	Form              json.RawMessage   `json:"form"`
	IsPublished       bool              `json:"isPublished"`
	DeliveryOption    *DeliveryOption   `json:"deliveryOption,omitempty"`
	SecurityAttribute SecurityAttribute `json:"securityAttribute"`
	FormPurpose       string            `json:"formPurpose"`
	ClosingDate       *time.Time        `json:"closingDate,omitempty"`
}

// PublicRecord is the only shape handed to unauthenticated form fillers.
type PublicRecord struct {
	ID                string            `json:"id"`
	UpdatedAt         *time.Time        `json:"updatedAt,omitempty"`
	ClosingDate       *time.Time        `json:"closingDate,omitempty"`
	Form              json.RawMessage   `json:"form"`
	IsPublished       bool              `json:"isPublished"`
	SecurityAttribute SecurityAttribute `json:"securityAttribute"`
}

func (r Record) Public() PublicRecord {
	return PublicRecord{
		ID:                r.ID,
		UpdatedAt:         r.UpdatedAt,
		ClosingDate:       r.ClosingDate,
		Form:              r.Form,
		IsPublished:       r.IsPublished,
		SecurityAttribute: r.SecurityAttribute,
	}
}

// Title reads the English title out of the form configuration, falling back
// to the language-neutral title key.
func (r Record) Title() string {
	var props struct {
		TitleEn string `json:"titleEn"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(r.Form, &props); err != nil {
		return ""
	}
	if props.TitleEn != "" {
		return props.TitleEn
	}
	return props.Title
}

type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type RecordWithOwners struct {
	Record Record  `json:"formRecord"`
	Users  []Owner `json:"users"`
}

func (r RecordWithOwners) OwnerIDs() []string {
	ids := make([]string, 0, len(r.Users))
	for _, user := range r.Users {
		ids = append(ids, user.ID)
	}
	return ids
}

type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type ListOptions struct {
	SortByDateUpdated SortOrder
	// Published narrows the listing when set.
	Published *bool
}
