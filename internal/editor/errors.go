package editor

import (
	"errors"
	"fmt"
)

// CodeAPIFailure is the only error category the engine produces for backend
// failures. Distinguishing network from validation problems is the
// transport's business.
const CodeAPIFailure = "API_FAILURE"

var (
	ErrNoDraft   = errors.New("no draft loaded")
	ErrFinalized = errors.New("draft is finalized")
)

// Error wraps a failed backend call.
type Error struct {
	Code        string
	Op          string
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func apiFailure(op string, err error) *Error {
	return &Error{Code: CodeAPIFailure, Op: op, Recoverable: true, Err: err}
}
