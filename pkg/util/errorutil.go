package util

import (
	"errors"
	"fmt"
)

// Kind tags a DomainError with one of a closed set of failure classes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateCredential
	KindLoginMismatch
	KindMissingCredential
	KindKeyResolutionFailed
	KindInvalidCredential
	KindForbidden
	KindNotFound
	KindRateLimited
	KindSigningKeyUnavailable
	KindStorageFailure
)

var kindNames = map[Kind]string{
	KindInternal:              "internal",
	KindValidation:            "validation",
	KindDuplicateCredential:   "duplicate_credential",
	KindLoginMismatch:         "login_mismatch",
	KindMissingCredential:     "missing_credential",
	KindKeyResolutionFailed:   "key_resolution_failed",
	KindInvalidCredential:     "invalid_credential",
	KindForbidden:             "forbidden",
	KindNotFound:              "not_found",
	KindRateLimited:           "rate_limited",
	KindSigningKeyUnavailable: "signing_key_unavailable",
	KindStorageFailure:        "storage_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ServerFault reports whether the kind describes broken infrastructure rather than a bad request.
func (k Kind) ServerFault() bool {
	switch k {
	case KindInternal, KindSigningKeyUnavailable, KindStorageFailure:
		return true
	default:
		return false
	}
}

// DomainError standardizes application errors.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(kind Kind, code, message string, details map[string]any, err error) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, Details: details, Err: err}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(KindValidation, "VALIDATION_FAILED", message, details, nil)
}

func NewDuplicateCredential(message string) error {
	return NewDomainError(KindDuplicateCredential, "DUPLICATE_CREDENTIAL", message, nil, nil)
}

func NewLoginMismatch() error {
	return NewDomainError(KindLoginMismatch, "LOGIN_MISMATCH", "Email or password does not match", nil, nil)
}

func NewMissingCredential(message string) error {
	return NewDomainError(KindMissingCredential, "UNAUTHORIZED", message, nil, nil)
}

func NewKeyResolutionFailed(err error) error {
	return NewDomainError(KindKeyResolutionFailed, "UNAUTHORIZED", "verification key unavailable", nil, err)
}

func NewInvalidCredential(message string, err error) error {
	return NewDomainError(KindInvalidCredential, "UNAUTHORIZED", message, nil, err)
}

func NewForbidden(message string) error {
	return NewDomainError(KindForbidden, "FORBIDDEN", message, nil, nil)
}

func NewNotFound(resource string) error {
	return NewDomainError(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), nil, nil)
}

func NewRateLimited(message string) error {
	return NewDomainError(KindRateLimited, "RATE_LIMITED", message, nil, nil)
}

func NewSigningKeyUnavailable(err error) error {
	return NewDomainError(KindSigningKeyUnavailable, "INTERNAL_ERROR", "signing key unavailable", nil, err)
}

func NewStorageFailure(err error) error {
	return NewDomainError(KindStorageFailure, "INTERNAL_ERROR", "failed to store data in the database", nil, err)
}

func NewInternalError(err error) error {
	return NewDomainError(KindInternal, "INTERNAL_ERROR", "internal server error", nil, err)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewDomainError(KindInternal, "INTERNAL_ERROR", "internal server error", nil, err)
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a DomainError of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
