package errors

import "errors"

var (
	ErrNotFound = errors.New("staff availability not found")

	ErrInvalidWindow = errors.New("stored availability window is malformed")
)
