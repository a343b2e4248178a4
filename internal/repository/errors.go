package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("person not found")
	ErrInvalidID    = errors.New("invalid person id")
	ErrNameRequired = errors.New("name is required")
	ErrEmptyUpdate  = errors.New("update has no fields to set")
)

// StoreError is the single error kind returned by person stores.
// Err is either one of the sentinels above or the driver error, unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("person store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err and a *StoreError otherwise.
// Errors that already are a *StoreError are returned as is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
