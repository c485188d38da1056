package service

import (
	"context"
	"strings"

	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
	"agendly/pkg/model"
)

// ReservationFinder narrows the candidate set with an indexed range query.
// The detector re-applies the overlap rule itself, so a finder may return
// a superset.
type ReservationFinder interface {
	FindOverlapping(ctx context.Context, q model.ConflictQuery) ([]*model.Reservation, error)
}

type ConflictDetector interface {
	CheckConflicts(ctx context.Context, q model.ConflictQuery) (*model.ConflictResult, error)
}

type conflictDetector struct {
	finder ReservationFinder
	log    *logger.Logger
}

func NewConflictDetector(finder ReservationFinder, log *logger.Logger) ConflictDetector {
	return &conflictDetector{
		finder: finder,
		log:    log,
	}
}

// CheckConflicts reports every active reservation of the tenant that
// overlaps the query window. With resource ids the check only considers
// reservations sharing one of them.
func (d *conflictDetector) CheckConflicts(ctx context.Context, q model.ConflictQuery) (*model.ConflictResult, error) {
	if strings.TrimSpace(q.TenantID) == "" {
		return nil, apperrors.InvalidInput("tenant_id is required")
	}
	if q.StartAt.IsZero() || q.EndAt.IsZero() || !q.StartAt.Before(q.EndAt) {
		return nil, apperrors.Validation("Conflict window must have start before end", map[string]any{
			"start_at": q.StartAt,
			"end_at":   q.EndAt,
		})
	}

	candidates, err := d.finder.FindOverlapping(ctx, q)
	if err != nil {
		d.log.Error("Failed to load overlapping reservations", "tenant_id", q.TenantID, "error", err)
		return nil, apperrors.Persistence("Failed to check reservation conflicts", err)
	}

	result := model.NewConflictResult(model.CollectConflicts(q, candidates))
	if result.HasConflict {
		d.log.Debug("Reservation conflicts found",
			"tenant_id", q.TenantID,
			"start_at", q.StartAt,
			"end_at", q.EndAt,
			"resource_ids", q.ResourceIDs,
			"count", len(result.Conflicts),
		)
	}
	return result, nil
}
