package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindExternalService      Kind = "external_service"
	KindStructuralValidation Kind = "structural_validation"
	KindGenerationFailed     Kind = "generation_failed"
	KindDatabase             Kind = "database"
	KindInternal             Kind = "internal"
)

const (
	CodeInvalidCompany       = "INVALID_COMPANY"
	CodeInvalidQuestionCount = "INVALID_QUESTION_COUNT"
	CodeInvalidYear          = "INVALID_YEAR"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeStorageFailed        = "STORAGE_FAILED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeMalformedOutput      = "MALFORMED_OUTPUT"
	CodeTestNotFound         = "TEST_NOT_FOUND"
	CodeNoQuestions          = "NO_QUESTIONS"
	CodeMissingAnswers       = "MISSING_ANSWERS"
	CodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeDatabaseError        = "DATABASE_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error carries a failure kind, a stable code for clients and the cause.
// Field names the offending input or document location when known.
type Error struct {
	Kind  Kind
	Code  string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

func Validation(code, field, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Msg: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: msg}
}

func Structural(field, msg string) *Error {
	return &Error{Kind: KindStructuralValidation, Code: CodeMalformedOutput, Field: field, Msg: msg}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether any *Error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
