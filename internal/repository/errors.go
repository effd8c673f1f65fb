package repository

import (
	"errors"
	"fmt"
)

// FetchError means the origin URL was unreachable or returned a non-success status.
type FetchError struct {
	URL string
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageWriteError means the payload or its metadata could not be persisted.
type StorageWriteError struct {
	Op  string
	Err error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage write (%s): %v", e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageReadError means the storage medium could not be read.
type StorageReadError struct {
	Op  string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("storage read (%s): %v", e.Op, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsStorageWriteError(err error) bool {
	var we *StorageWriteError
	return errors.As(err, &we)
}

func IsStorageReadError(err error) bool {
	var re *StorageReadError
	return errors.As(err, &re)
}
