package fetcher

import (
	"context"
	"fmt"
)

// FetchError is returned once every attempt for a URL has failed. Err holds the last cause.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: after %d attempts: status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ConfigError means the fetcher cannot work at all with the current configuration.
// It is never retried.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Setting, e.Reason)
}

type statusError struct {
	code    int
	snippet string
}

func (e *statusError) Error() string {
	if e.snippet == "" {
		return fmt.Sprintf("unexpected status: %d", e.code)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.code, e.snippet)
}

// Unavailable fails every request with a configuration error. It stands in for a
// fetcher that could not be constructed.
type Unavailable struct {
	Err *ConfigError
}

func (u Unavailable) Fetch(context.Context, string, Options) (string, error) {
	return "", u.Err
}
