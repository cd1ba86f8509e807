package app

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindAccessDenied              ErrorKind = "ACCESS_DENIED"
	KindAlreadyPublished          ErrorKind = "TEMPLATE_ALREADY_PUBLISHED"
	KindHasUnprocessedSubmissions ErrorKind = "TEMPLATE_HAS_UNPROCESSED_SUBMISSIONS"
	KindInvalidInput              ErrorKind = "VALIDATION_ERROR"
	KindStorageFailure            ErrorKind = "STORAGE_FAILURE"
)

// Sentinels for errors.Is. A DomainError matches the sentinel of its kind.
var (
	ErrAccessDenied              = &DomainError{Kind: KindAccessDenied}
	ErrAlreadyPublished          = &DomainError{Kind: KindAlreadyPublished}
	ErrHasUnprocessedSubmissions = &DomainError{Kind: KindHasUnprocessedSubmissions}
	ErrInvalidInput              = &DomainError{Kind: KindInvalidInput}
	ErrStorageFailure            = &DomainError{Kind: KindStorageFailure}
)

type DomainError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Details any
	Err     error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// KindOf reports the kind of the first DomainError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return "", false
}

var kindStatus = map[ErrorKind]int{
	KindAccessDenied:              http.StatusForbidden,
	KindAlreadyPublished:          http.StatusConflict,
	KindHasUnprocessedSubmissions: http.StatusConflict,
	KindInvalidInput:              http.StatusUnprocessableEntity,
	KindStorageFailure:            http.StatusInternalServerError,
}

func domainError(kind ErrorKind, message string, details any, err error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  kindStatus[kind],
		Message: message,
		Details: details,
		Err:     err,
	}
}

func accessDenied(err error) *DomainError {
	return domainError(KindAccessDenied, "Forbidden", nil, err)
}

func alreadyPublished(formID string) *DomainError {
	return domainError(KindAlreadyPublished, "Form is already published", map[string]any{"formId": formID}, nil)
}

func hasUnprocessedSubmissions(formID string, count int) *DomainError {
	return domainError(KindHasUnprocessedSubmissions, "Form has unprocessed submissions",
		map[string]any{"formId": formID, "unprocessed": count}, nil)
}

func invalidInput(message string, details any) *DomainError {
	return domainError(KindInvalidInput, message, details, nil)
}

func storageFailure(op string, err error) *DomainError {
	return domainError(KindStorageFailure, op+" failed", nil, err)
}
