package main

import "fmt"

// MalformedEventError is returned when an invocation event does not carry
// the bucket name and object key of its first record.
type MalformedEventError struct {
	Reason string
}

func NewMalformedEventError(reason string) error {
	return &MalformedEventError{Reason: reason}
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s", e.Reason)
}
