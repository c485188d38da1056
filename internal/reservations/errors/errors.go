package errors

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "agendly/pkg/errors"
	"agendly/pkg/model"
)

var (
	ErrNotFound = errors.New("reservation not found")

	ErrTimeConflict = errors.New("reservation time conflicts with existing reservation")

	ErrInvalidTimeRange = errors.New("end time must be after start time")

	ErrNotActive = errors.New("reservation is not pending or confirmed")
)

// ConflictError carries the reservations a write collided with. It matches
// ErrTimeConflict under errors.Is.
type ConflictError struct {
	Conflicts []model.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflict(s)", ErrTimeConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrTimeConflict
}

const conflictMessage = "Requested time is no longer available"

// NewConflict builds the CONFLICT app error returned to callers, with the
// colliding reservations under details.conflicts.
func NewConflict(conflicts []model.Conflict) *apperrors.AppError {
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}
	return apperrors.Wrap(&ConflictError{Conflicts: conflicts}, apperrors.CodeConflict, conflictMessage, http.StatusConflict).
		WithDetails(map[string]any{"conflicts": conflicts})
}

// ConflictsOf extracts the conflict list from err, if it carries one.
func ConflictsOf(err error) ([]model.Conflict, bool) {
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr.Conflicts, true
	}
	return nil, false
}
