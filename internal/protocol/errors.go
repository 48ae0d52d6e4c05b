package protocol

import "fmt"

// Stable error codes sent in error messages
const (
	CodeBadJSON            = "bad_json"
	CodeUnsupportedVersion = "unsupported_version"
	CodeUnknownType        = "unknown_type"
	CodeInvalidField       = "invalid_field"
	CodeMatchNotFound      = "match_not_found"
	CodeEngineClosed       = "engine_closed"
)

// Error is a client-facing protocol error
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a protocol error with a formatted message
func Errorf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ToMessage converts the error into its wire form
func (e *Error) ToMessage() ErrorMessage {
	return ErrorMessage{Type: TypeError, V: Version, Code: e.Code, Message: e.Message}
}
