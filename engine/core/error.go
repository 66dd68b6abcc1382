package core

import (
	"errors"
	"fmt"
	"maps"
)

// Error carries a stable machine-readable code next to the wrapped cause.
type Error struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// NewError wraps err with a code. When err is nil the code itself becomes the message.
func NewError(err error, code string, details map[string]any) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	var cloned map[string]any
	if len(details) > 0 {
		cloned = make(map[string]any, len(details))
		maps.Copy(cloned, details)
	}
	return &Error{
		Code:    code,
		Message: msg,
		Details: cloned,
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" || e.Code == e.Message {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsMap renders the error for structured output.
func (e *Error) AsMap() map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		out["details"] = CloneMap(e.Details)
	}
	return out
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code string) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Err
	}
	return false
}
