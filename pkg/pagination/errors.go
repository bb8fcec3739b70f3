package pagination

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrInvalidRequest is returned when a Request cannot be executed.
	ErrInvalidRequest = errors.New("invalid paged request")

	// ErrMalformedPage is returned when a page does not have the shape the strategy expects.
	ErrMalformedPage = errors.New("malformed page")

	// ErrMissingCursor is returned when a connection reports hasNextPage without an endCursor.
	ErrMissingCursor = errors.New("hasNextPage is true but endCursor is missing")

	// ErrRootMissing is returned when the root entity disappears after the first page.
	ErrRootMissing = errors.New("root entity missing from page")
)

// FetchError reports the request on which a paged fetch failed.
// The underlying transport or decoding error is available through errors.Is/As.
type FetchError struct {
	Request  int
	Strategy Kind
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed on request %d: %v", e.Strategy, e.Request, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
