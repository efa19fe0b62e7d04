// Package rendering produces filled documents from a template and a set of
// resolved field mappings.
package rendering

import "fmt"

// RenderError represents a rendering failure. Rendering is all or nothing:
// when a RenderError is returned no output document exists.
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("render error: %s", e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
