package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrSaving is returned when an edit is started while a save is in flight.
	ErrSaving = errors.New("a save is already in progress")
	// ErrNoCollection is returned by operations that need an active collection.
	ErrNoCollection = errors.New("no collection selected")
)

// DuplicateKeyError reports a unique-index violation on insert. Field is
// empty when the offending field could not be read from the server error.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return "Duplicate value detected. Please check unique fields."
	}
	return fmt.Sprintf("Duplicate value detected for field %q. Please use a unique value.", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

var (
	dupKeyPattern   = regexp.MustCompile(`dup key: \{ (\w+): `)
	dupIndexPattern = regexp.MustCompile(`index: (\w+)_`)
)

// AsDuplicateKey inspects a server error message for the storage engine's
// E11000 marker and pulls the offending field out of it.
func AsDuplicateKey(err error) (*DuplicateKeyError, bool) {
	if err == nil {
		return nil, false
	}
	msg := err.Error()
	if !strings.Contains(msg, "E11000") {
		return nil, false
	}
	dup := &DuplicateKeyError{Err: err}
	if m := dupKeyPattern.FindStringSubmatch(msg); m != nil {
		dup.Field = m[1]
	} else if m := dupIndexPattern.FindStringSubmatch(msg); m != nil {
		dup.Field = m[1]
	}
	return dup, true
}
