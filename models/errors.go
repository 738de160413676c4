package models

import (
	"errors"
	"fmt"
)

// ErrStructure signals that the page did not have the expected structure.
var ErrStructure = errors.New("unexpected page structure")

// ExtractionError reports a DOM fragment or attribute that was absent or
// could not be parsed.
type ExtractionError struct {
	Field   string
	Element string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Field, e.Element, e.cause())
}

func (e *ExtractionError) Unwrap() error {
	return e.cause()
}

func (e *ExtractionError) cause() error {
	if e.Err == nil {
		return ErrStructure
	}
	return e.Err
}
