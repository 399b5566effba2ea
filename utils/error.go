package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Stable machine-readable error codes. Callers branch on the code,
// never on the message text.
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeSubcontractNotFound = "SUBCONTRACT_NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeValidation          = "VALIDATION"
	ErrCodeDuplicateCoNumber   = "DUPLICATE_CO_NUMBER"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
)

type CodedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CodedError) Error() string { return e.Message }

func NewCodedError(code string, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// ErrorCode returns the machine code carried by err. Unexpected errors
// (storage failures, driver errors) normalize to DATABASE_ERROR so internal
// detail never leaks to the caller.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeDatabaseError
}
