package report

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines report error kinds.
type ErrorKind string

const (
	KindTranslation   ErrorKind = "translation"
	KindGeometry      ErrorKind = "geometry"
	KindSerialization ErrorKind = "serialization"
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindCanceled      ErrorKind = "canceled"
	KindInternal      ErrorKind = "internal"
)

// ReportError wraps errors with a kind.
type ReportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ReportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// NewError creates a new report error.
func NewError(kind ErrorKind, msg string, err error) *ReportError {
	return &ReportError{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var reportErr *ReportError
	if errors.As(err, &reportErr) && reportErr.Msg != "" {
		msg = reportErr.Msg
	}

	switch kind {
	case KindTranslation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("translation")
	case KindGeometry:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("geometry")
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindSerialization:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("serialization")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its report error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var reportErr *ReportError
	if errors.As(err, &reportErr) {
		return reportErr.Kind
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		switch kind := ErrorKind(ge.TextCode); kind {
		case KindTranslation, KindGeometry, KindSerialization, KindValidation,
			KindNotFound, KindTimeout, KindCanceled:
			return kind
		}
		return KindInternal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// UserMessage returns a message safe to show to end users.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindTranslation:
		return "The report text could not be read. Check that it is valid UTF-8 text and try again."
	case KindGeometry:
		return "The page layout is not possible with the requested page size and margins."
	case KindSerialization:
		return "The PDF document could not be completed. Please try again."
	case KindValidation:
		return "The export options are not valid."
	case KindNotFound:
		return "The requested download or job is no longer available."
	case KindTimeout:
		return "The export took too long and was stopped."
	case KindCanceled:
		return "The export was canceled."
	default:
		return "The report could not be exported."
	}
}
