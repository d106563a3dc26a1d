package api

import "fmt"

// NetworkError is returned when the transport fails or the server answers
// with a non-2xx status. Status is 0 for transport failures.
type NetworkError struct {
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP error! status: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is returned when the response envelope carries success=false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "Unknown API error"
	}
	return e.Message
}

// ValidationError is raised locally, before anything reaches the server.
// Field names the input the message belongs to.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
