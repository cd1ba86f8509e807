package store

import (
	"encoding/json"
	"time"

	"formbuilder/api/internal/forms"
)

// Optional marks a field as present or absent in a TemplatePatch.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, set: true}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// TemplatePatch lists the attributes a single update overwrites. Absent
// fields keep their stored value. DeliveryOption set to Some(nil) removes the
// relation; ClosingDate set to Some(nil) clears the deadline. RequireDraft
// rejects the patch with ErrPublished when the locked row is already
// published.
type TemplatePatch struct {
	RequireDraft bool

	JSONConfig        Optional[json.RawMessage]
	Name              Optional[string]
	DeliveryOption    Optional[*forms.DeliveryOption]
	SecurityAttribute Optional[string]
	FormPurpose       Optional[string]
	IsPublished       Optional[bool]
	ClosingDate       Optional[*time.Time]
	TTL               Optional[*time.Time]
}

func (p TemplatePatch) IsEmpty() bool {
	return !p.JSONConfig.set &&
		!p.Name.set &&
		!p.DeliveryOption.set &&
		!p.SecurityAttribute.set &&
		!p.FormPurpose.set &&
		!p.IsPublished.set &&
		!p.ClosingDate.set &&
		!p.TTL.set
}

// Apply merges the patch onto a stored row.
func (p TemplatePatch) Apply(row Template) Template {
	next := row
	if value, ok := p.JSONConfig.Get(); ok {
		next.JSONConfig = value
	}
	if value, ok := p.Name.Get(); ok {
		next.Name = value
	}
	if value, ok := p.DeliveryOption.Get(); ok {
		if value == nil {
			next.DeliveryOption = nil
		} else {
			next.DeliveryOption = &DeliveryOption{
				EmailAddress:   value.EmailAddress,
				EmailSubjectEn: value.EmailSubjectEn,
				EmailSubjectFr: value.EmailSubjectFr,
			}
		}
	}
	if value, ok := p.SecurityAttribute.Get(); ok {
		next.SecurityAttribute = value
	}
	if value, ok := p.FormPurpose.Get(); ok {
		next.FormPurpose = value
	}
	if value, ok := p.IsPublished.Get(); ok {
		next.IsPublished = value
	}
	if value, ok := p.ClosingDate.Get(); ok {
		next.ClosingDate = copyTime(value)
	}
	if value, ok := p.TTL.Get(); ok {
		next.TTL = copyTime(value)
	}
	return next
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
