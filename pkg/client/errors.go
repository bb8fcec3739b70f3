package client

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError represents a network failure or a non-success HTTP status.
type TransportError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GraphQL %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("GraphQL %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Location is a position in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ErrorEntry is one entry of a GraphQL response's errors array.
type ErrorEntry struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLError represents application-level errors carried in a response payload.
type GraphQLError struct {
	Errors []ErrorEntry
}

// Error implements the error interface.
func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, entry := range e.Errors {
		msgs = append(msgs, entry.Message)
	}
	return "GraphQL errors: " + strings.Join(msgs, "; ")
}

// classOf returns the error class of an error produced by this package.
func classOf(err error) ErrorClass {
	var te *TransportError
	if errors.As(err, &te) {
		return te.ErrorClass
	}
	var ge *GraphQLError
	if errors.As(err, &ge) {
		return ErrorClassGraphQL
	}
	return ""
}
