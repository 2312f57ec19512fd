package iserror

import "net/http"

type (
	// An ISError represents the error format that can be rendered by the
	// ideastream server.
	ISError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string   `json:"tag,omitempty"`
		Message string   `json:"message"`
		Records []string `json:"records,omitempty"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if iserr, ok := err.(*ISError); ok && iserr.HTTPCode > 0 {
		return iserr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new ISError with the given message.
func New(message string) *ISError {
	return &ISError{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new ISError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *ISError {
	return &ISError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *ISError) Error() string {
	return e.FieldError.Message
}

// Tag returns the error tag.
func (e *ISError) Tag() string {
	return e.FieldError.Tag
}

//
// Engine error kinds.
//

// IncompatibleVisibility is returned by an attach when the item status does
// not match the group visibility. No mapping is created.
func IncompatibleVisibility(message string) *ISError {
	return NewWithTagCode(http.StatusConflict, "incompatible-visibility", message)
}

// NotAMember is returned by an attach when the item author does not belong to
// the group. No mapping is created.
func NotAMember(message string) *ISError {
	return NewWithTagCode(http.StatusForbidden, "not-a-member", message)
}

// IsIncompatibleVisibility returns true if err is an IncompatibleVisibility error.
func IsIncompatibleVisibility(err error) bool {
	iserr, ok := err.(*ISError)
	return ok && iserr.Tag() == "incompatible-visibility"
}

// IsNotAMember returns true if err is a NotAMember error.
func IsNotAMember(err error) bool {
	iserr, ok := err.(*ISError)
	return ok && iserr.Tag() == "not-a-member"
}

// PartialBatchFailure reports the records of a bulk operation that could not
// be written. The remaining records of the batch proceeded; the reconciliation
// job is the retry path.
func PartialBatchFailure(ids []string) *ISError {
	e := NewWithTagCode(http.StatusInternalServerError, "partial-batch-failure", "some records could not be updated")
	e.FieldError.Records = ids
	return e
}

// IsPartialBatchFailure returns true if err is a PartialBatchFailure error.
func IsPartialBatchFailure(err error) bool {
	iserr, ok := err.(*ISError)
	return ok && iserr.Tag() == "partial-batch-failure"
}

// FailedRecords returns the record ids carried by a PartialBatchFailure.
func FailedRecords(err error) []string {
	if iserr, ok := err.(*ISError); ok {
		return iserr.FieldError.Records
	}
	return nil
}
