package model

import (
	"fmt"
	"time"
)

// ErrorKind classifies a fetch failure for user-facing reporting
type ErrorKind string

const (
	// ErrInvalidURL means the message did not contain a well-formed absolute URL
	ErrInvalidURL ErrorKind = "InvalidURL"

	// ErrRateLimited means the user exceeded the request rate window
	ErrRateLimited ErrorKind = "RateLimited"

	// ErrAlreadyInProgress means the user already has a download running
	ErrAlreadyInProgress ErrorKind = "AlreadyInProgress"

	// ErrExtractionFailed means the extraction engine could not produce a file
	ErrExtractionFailed ErrorKind = "ExtractionFailed"

	// ErrTooLarge means the file exceeds the delivery ceiling even after transcoding
	ErrTooLarge ErrorKind = "TooLarge"

	// ErrTranscodeFailed means the transcoder could not reduce the file
	ErrTranscodeFailed ErrorKind = "TranscodeFailed"

	// ErrDeliveryFailed means the transport rejected the outbound file
	ErrDeliveryFailed ErrorKind = "DeliveryFailed"

	// ErrTimeout means the operation deadline elapsed before completion
	ErrTimeout ErrorKind = "Timeout"

	// ErrInternal covers recovered faults that fit no other kind
	ErrInternal ErrorKind = "Internal"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// FetchError is a typed fetch failure. Detail is internal diagnostic text
// and must only be logged, never shown to the user.
type FetchError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the wrapped error, if any
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a typed fetch failure
func NewFetchError(kind ErrorKind, detail string, err error) *FetchError {
	return &FetchError{Kind: kind, Detail: detail, Err: err}
}

// FetchResult is the outcome of a single fetch attempt. Exactly one of
// File/Fail is set. The file referenced by File.Path is owned by whoever
// consumes the result and must be removed after delivery.
type FetchResult struct {
	File *FetchedFile
	Fail *FetchError
}

// Succeeded returns true when the result carries a file
func (r FetchResult) Succeeded() bool {
	return r.File != nil && r.Fail == nil
}

// FetchedFile describes a successfully fetched media file
type FetchedFile struct {
	Path     string
	Kind     MediaKind
	Size     int64 // bytes, after any transcoding
	Title    string
	Uploader string
	Site     string // display name of the source platform
	Duration time.Duration
}
