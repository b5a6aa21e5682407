package parser

import "fmt"

// DecodeError reports malformed class file bytes
type DecodeError struct {
	Class string // empty when the failure precedes this_class
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("failed to read class: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("failed to read class %s: %s: %v", e.Class, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
