package source

import "fmt"

// ParseError reports that one extraction tier could not read the page. It never
// leaves the engine; the next tier is tried instead.
type ParseError struct {
	Extractor string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s extractor: %v", e.Extractor, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AdapterError is the failed result of one adapter run.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
