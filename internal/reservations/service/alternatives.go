package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/model"
	"agendly/pkg/sanitizer"
)

const defaultAlternativesLimit = 3

// SuggestAlternatives walks windows of the requested length, one search
// step apart, starting one step after the requested start. It returns the
// first ones that are free of reservations and inside the staff member's
// working hours.
func (s *reservationService) SuggestAlternatives(ctx context.Context, tenantID string, req *model.AlternativesRequest) ([]model.TimeWindow, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apperrors.InvalidInput("tenant_id is required")
	}
	if req == nil {
		return nil, apperrors.InvalidInput("Alternatives request cannot be empty")
	}
	s.sanitize(&req.CreateReservationRequest)
	if err := s.validator.ValidateAlternatives(req); err != nil {
		s.cfg.Log.Warn("Alternatives validation failed", "tenant_id", tenantID, "error", err)
		return nil, apperrors.Validation("Alternatives validation failed", map[string]any{"error": err.Error()})
	}

	start := req.StartAt.UTC()
	duration := req.EndAt.Sub(req.StartAt)
	horizon := s.searchHorizon(start, req.SearchUntil)
	step := s.cfg.AlternativeSearchStep
	if step <= 0 {
		step = config.DefaultAlternativeSearchStep
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultAlternativesLimit
	}

	result, err := s.conflicts.CheckConflicts(ctx, model.ConflictQuery{
		TenantID:    tenantID,
		StartAt:     start,
		EndAt:       horizon,
		ResourceIDs: sanitizer.NormalizeIDs(req.ResourceIDs()),
	})
	if err != nil {
		return nil, err
	}
	busy := mergeBusy(result.Conflicts)

	windows := []model.TimeWindow{}
	for candidate := start.Add(step); !candidate.Add(duration).After(horizon) && len(windows) < limit; candidate = candidate.Add(step) {
		window := model.TimeWindow{StartAt: candidate, EndAt: candidate.Add(duration)}
		if overlapsAny(window, busy) {
			continue
		}
		if req.StaffID != "" {
			unavailable, err := s.availability.CheckAvailability(ctx, tenantID, []string{req.StaffID}, window.StartAt, window.EndAt)
			if err != nil {
				return nil, err
			}
			if len(unavailable) > 0 {
				continue
			}
		}
		windows = append(windows, window)
	}

	s.cfg.Log.Debug("Alternative windows computed",
		"tenant_id", tenantID,
		"start_at", start,
		"search_until", horizon,
		"found", len(windows),
	)
	return windows, nil
}

func (s *reservationService) searchHorizon(start, until time.Time) time.Time {
	window := s.cfg.AlternativeSearchWindow
	if window <= 0 {
		window = config.DefaultAlternativeSearchWindow
	}
	horizon := start.Add(window)
	if !until.IsZero() {
		horizon = until.UTC()
	}
	if limit := start.Add(config.MaxAlternativeSearchWindow); horizon.After(limit) {
		horizon = limit
	}
	return horizon
}

// mergeBusy collapses the conflicting reservations into sorted, disjoint
// busy windows.
func mergeBusy(conflicts []model.Conflict) []model.TimeWindow {
	if len(conflicts) == 0 {
		return nil
	}

	busy := make([]model.TimeWindow, 0, len(conflicts))
	for _, c := range conflicts {
		busy = append(busy, model.TimeWindow{StartAt: c.StartAt, EndAt: c.EndAt})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].StartAt.Before(busy[j].StartAt) })

	merged := []model.TimeWindow{busy[0]}
	for _, current := range busy[1:] {
		last := &merged[len(merged)-1]
		if !current.StartAt.After(last.EndAt) {
			if current.EndAt.After(last.EndAt) {
				last.EndAt = current.EndAt
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged
}

func overlapsAny(window model.TimeWindow, busy []model.TimeWindow) bool {
	for _, b := range busy {
		if model.Overlaps(window.StartAt, window.EndAt, b.StartAt, b.EndAt) {
			return true
		}
	}
	return false
}
