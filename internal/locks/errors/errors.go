package errors

import "errors"

var (
	ErrNotFound = errors.New("slot lock not found")

	ErrLockHeld = errors.New("slot lock is held by another session")

	ErrInvalidWindow = errors.New("lock end must be after start")
)
