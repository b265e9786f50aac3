package netscape

import "fmt"

// ParseError reports input that could not be parsed as HTML at all. Missing
// expected elements never produce one; those yield empty results instead.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse bookmark file: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
