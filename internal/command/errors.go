package command

import (
	"fmt"
	"strings"
)

// ErrorKind is the stable machine-readable failure class surfaced to callers.
type ErrorKind string

const (
	KindFormat     ErrorKind = "format"
	KindAIParse    ErrorKind = "ai_parse"
	KindAmbiguous  ErrorKind = "ambiguous_intent"
	KindValidation ErrorKind = "validation"
	KindGateway    ErrorKind = "gateway"
	KindAuth       ErrorKind = "auth"
)

// Error carries a failure kind plus a human-readable message. Validation
// failures list every violated rule in Details.
type Error struct {
	Kind      ErrorKind
	Message   string
	Details   []string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newFormatError(suggestion string) *Error {
	return &Error{Kind: KindFormat, Message: suggestion}
}

func newAIParseError(message string, err error) *Error {
	return &Error{Kind: KindAIParse, Message: message, Err: err}
}

func newAmbiguousError(reply string) *Error {
	return &Error{
		Kind:    KindAmbiguous,
		Message: fmt.Sprintf("could not decide between reading and writing, classifier said %q", reply),
	}
}

func newValidationError(reasons []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "command failed validation",
		Details: reasons,
	}
}

func newGatewayError(op string, err error, retryable bool) *Error {
	return &Error{
		Kind:      KindGateway,
		Message:   fmt.Sprintf("%s: %v", op, err),
		Retryable: retryable,
		Err:       err,
	}
}

// NewAuthError names both accepted authentication methods.
func NewAuthError() *Error {
	return &Error{
		Kind:    KindAuth,
		Message: "authentication required: send a bearer token or start the command with \"pin is <PIN>\"",
	}
}
