package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("no extractable content")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrConnectivity      = errors.New("upstream unreachable")
	ErrSaveFailed        = errors.New("ledger save failed")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidInput      = errors.New("invalid input")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// MalformedResponseError keeps the raw model output for diagnosis when the
// extraction response cannot be parsed into the expected shape.
type MalformedResponseError struct {
	Operation string
	RawText   string
	Cause     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Operation, ErrMalformedResponse, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error {
	return ErrMalformedResponse
}

func NewMalformedResponseError(operation, rawText string, cause error) error {
	return &MalformedResponseError{Operation: operation, RawText: rawText, Cause: cause}
}

// RawResponseText extracts the preserved model output from an error chain, if
// present.
func RawResponseText(err error) (string, bool) {
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.RawText, true
	}
	return "", false
}
