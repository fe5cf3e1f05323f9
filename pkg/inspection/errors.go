package inspection

import (
	"errors"
	"fmt"
)

// ErrSyntax is returned when the source does not parse as Python.
var ErrSyntax = errors.New("invalid python syntax")

// ParseError wraps a parse failure with its position.
type ParseError struct {
	Filename string
	Line     int
	Err      error
}

func (e *ParseError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<string>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", name, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
