package atomic

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/openarc/strata/internal/jsonapi"
)

// ErrorCode categorizes pipeline errors.
type ErrorCode string

const (
	// Deserialization errors (422).
	ErrCodeMalformedDocument    ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeMalformedOperation   ErrorCode = "MALFORMED_OPERATION"
	ErrCodeHrefNotSupported     ErrorCode = "HREF_NOT_SUPPORTED"
	ErrCodeIDAndLidExclusive    ErrorCode = "ID_AND_LID_MUTUALLY_EXCLUSIVE"
	ErrCodeIDOrLidRequired      ErrorCode = "ID_OR_LID_REQUIRED"
	ErrCodeLidOrIDRequired      ErrorCode = "LID_OR_ID_REQUIRED"
	ErrCodeUnknownResourceType  ErrorCode = "UNKNOWN_RESOURCE_TYPE"
	ErrCodeUnknownRelationship  ErrorCode = "UNKNOWN_RELATIONSHIP"
	ErrCodeUnknownField         ErrorCode = "UNKNOWN_FIELD"
	ErrCodeReadOnlyField        ErrorCode = "READ_ONLY_FIELD"
	ErrCodeInvalidFieldValue    ErrorCode = "INVALID_FIELD_VALUE"
	ErrCodeClientIDNotAllowed   ErrorCode = "CLIENT_GENERATED_ID_NOT_ALLOWED"

	// Local-ID errors (400).
	ErrCodeLocalIDConflict     ErrorCode = "LOCAL_ID_CONFLICT"
	ErrCodeLocalIDNotAvailable ErrorCode = "LOCAL_ID_NOT_AVAILABLE"
	ErrCodeLocalIDTypeMismatch ErrorCode = "LOCAL_ID_TYPE_MISMATCH"
	ErrCodeLocalIDSelfUse      ErrorCode = "LOCAL_ID_USED_WHILE_DEFINING"

	// Conflict errors (409).
	ErrCodeIncompatibleType    ErrorCode = "INCOMPATIBLE_RESOURCE_TYPE"
	ErrCodeConflictingIDValue  ErrorCode = "CONFLICTING_ID_VALUE"
	ErrCodeConflictingLidValue ErrorCode = "CONFLICTING_LID_VALUE"
	ErrCodePersistenceConflict ErrorCode = "PERSISTENCE_CONFLICT"

	// Not-found errors (404).
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// Everything the pipeline cannot classify (500).
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error is the single error type flowing through every pipeline stage.
// The first Error raised aborts the batch; it maps one-to-one onto the
// JSON:API error object of the response.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Status is the HTTP-equivalent status of the category.
	Status int

	// Title is a stable, human-readable summary per code.
	Title string

	// Detail describes this specific occurrence.
	Detail string

	// Pointer is the JSON pointer into the request document, e.g.
	// "/atomic:operations[2]/data/attributes/title".
	Pointer string

	// Meta carries additional context (e.g. the echoed request body).
	Meta map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Pointer)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// WithPointer returns the error annotated with a source pointer, unless
// one was already set by an earlier (more specific) stage.
func (e *Error) WithPointer(pointer string) *Error {
	if e.Pointer == "" {
		e.Pointer = pointer
	}
	return e
}

// Object converts the error to a wire-level JSON:API error object.
func (e *Error) Object() jsonapi.ErrorObject {
	obj := jsonapi.ErrorObject{
		Status: strconv.Itoa(e.Status),
		Code:   string(e.Code),
		Title:  e.Title,
		Detail: e.Detail,
		Meta:   e.Meta,
	}
	if e.Pointer != "" {
		obj.Source = &jsonapi.ErrorSource{Pointer: e.Pointer}
	}
	return obj
}

// Document wraps the error in a response envelope. Exactly one error is
// ever returned per failed batch.
func (e *Error) Document() *jsonapi.ErrorDocument {
	return &jsonapi.ErrorDocument{Errors: []jsonapi.ErrorObject{e.Object()}}
}

func newDeserializationError(code ErrorCode, pointer, detail string) *Error {
	return &Error{
		Code:    code,
		Status:  http.StatusUnprocessableEntity,
		Title:   "Failed to deserialize request body.",
		Detail:  detail,
		Pointer: pointer,
	}
}

func newConflictError(code ErrorCode, pointer, detail string) *Error {
	return &Error{
		Code:    code,
		Status:  http.StatusConflict,
		Title:   "The request body contains conflicting information.",
		Detail:  detail,
		Pointer: pointer,
	}
}

func newLocalIDError(code ErrorCode, title, detail string) *Error {
	return &Error{
		Code:   code,
		Status: http.StatusBadRequest,
		Title:  title,
		Detail: detail,
	}
}

func newNotFoundError(pointer, detail string) *Error {
	return &Error{
		Code:    ErrCodeResourceNotFound,
		Status:  http.StatusNotFound,
		Title:   "The requested resource does not exist.",
		Detail:  detail,
		Pointer: pointer,
	}
}

func newInternalError(pointer string, err error) *Error {
	return &Error{
		Code:    ErrCodeInternal,
		Status:  http.StatusInternalServerError,
		Title:   "An unhandled error occurred while processing the operation.",
		Detail:  err.Error(),
		Pointer: pointer,
	}
}
