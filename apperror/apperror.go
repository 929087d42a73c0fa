package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so that controllers can map it to a status code
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindAuthorization         Kind = "authorization_error"
	KindState                 Kind = "state_error"
	KindConflict              Kind = "conflict_error"
	KindEarlyRelease          Kind = "early_release_error"
	KindSignatureVerification Kind = "signature_verification_error"
	KindRoleMismatch          Kind = "role_mismatch_error"
	KindNotFound              Kind = "not_found"
	KindNotVisible            Kind = "not_visible"
	KindCollaborator          Kind = "collaborator_error"
)

// Sentinels usable with errors.Is
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrAuthorization         = &Error{Kind: KindAuthorization}
	ErrState                 = &Error{Kind: KindState}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrEarlyRelease          = &Error{Kind: KindEarlyRelease}
	ErrSignatureVerification = &Error{Kind: KindSignatureVerification}
	ErrRoleMismatch          = &Error{Kind: KindRoleMismatch}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrNotVisible            = &Error{Kind: KindNotVisible}
	ErrCollaborator          = &Error{Kind: KindCollaborator}
)

// Error is a typed domain failure. Two errors match under errors.Is when their kinds match.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func Authorization(format string, args ...interface{}) error {
	return newf(KindAuthorization, format, args...)
}

func State(format string, args ...interface{}) error {
	return newf(KindState, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

func EarlyRelease(format string, args ...interface{}) error {
	return newf(KindEarlyRelease, format, args...)
}

func SignatureVerification(format string, args ...interface{}) error {
	return newf(KindSignatureVerification, format, args...)
}

func RoleMismatch(format string, args ...interface{}) error {
	return newf(KindRoleMismatch, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func NotVisible(format string, args ...interface{}) error {
	return newf(KindNotVisible, format, args...)
}

// Collaborator wraps a failure of an external dependency required synchronously
func Collaborator(err error, format string, args ...interface{}) error {
	e := newf(KindCollaborator, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in the chain, or "" for untyped errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code surfaced to callers
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindEarlyRelease:
		return http.StatusBadRequest
	case KindSignatureVerification:
		return http.StatusUnauthorized
	case KindAuthorization, KindRoleMismatch:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState, KindConflict:
		return http.StatusConflict
	case KindNotVisible:
		return http.StatusServiceUnavailable
	case KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
