package mocks

import "errors"

var (
	// ErrInjected is the default error returned by failure hooks.
	ErrInjected = errors.New("injected failure")

	// ErrRowOutOfRange is returned when updating a row past the end of a table.
	ErrRowOutOfRange = errors.New("row out of range")
)
