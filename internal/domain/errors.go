package domain

import "fmt"

// FetchError reports a failed query against a store collection.
type FetchError struct {
	Collection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a failed insert into a store collection.
type WriteError struct {
	Collection string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PollError reports a failed status poll; it is logged and never surfaced.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll status: %v", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }
