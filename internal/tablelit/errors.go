package tablelit

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every error Parse returns.
var ErrSyntax = errors.New("table literal syntax error")

// SyntaxError reports a malformed table literal and the byte offset it was found at.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("table literal: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func syntaxErrorf(offset int, format string, args ...any) error {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
