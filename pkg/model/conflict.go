package model

import (
	"slices"
	"time"
)

type ConflictType string

const (
	ConflictTimeOverlap           ConflictType = "time_overlap"
	ConflictResourceDoubleBooking ConflictType = "resource_double_booking"
	ConflictStaffUnavailable      ConflictType = "staff_unavailable"
)

// Reasons attached to staff_unavailable conflicts.
const (
	ReasonNoSchedule          = "no_schedule"
	ReasonNotWorking          = "not_working"
	ReasonOutsideWorkingHours = "outside_working_hours"
	ReasonDuringBreak         = "during_break"
	ReasonSpansMidnight       = "spans_midnight"
)

type Conflict struct {
	ReservationID string       `json:"reservation_id,omitempty"`
	StartAt       time.Time    `json:"start_at"`
	EndAt         time.Time    `json:"end_at"`
	ResourceID    string       `json:"resource_id,omitempty"`
	Type          ConflictType `json:"conflict_type"`
	Reason        string       `json:"reason,omitempty"`
}

type ConflictResult struct {
	HasConflict bool       `json:"has_conflict"`
	Conflicts   []Conflict `json:"conflicts"`
}

func NewConflictResult(conflicts []Conflict) *ConflictResult {
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	return &ConflictResult{
		HasConflict: len(conflicts) > 0,
		Conflicts:   conflicts,
	}
}

func (r *ConflictResult) Add(conflicts ...Conflict) {
	r.Conflicts = append(r.Conflicts, conflicts...)
	r.HasConflict = len(r.Conflicts) > 0
}

// ConflictQuery describes the window a caller wants to occupy. An empty
// ResourceIDs means the check is tenant wide.
type ConflictQuery struct {
	TenantID             string
	StartAt              time.Time
	EndAt                time.Time
	ResourceIDs          []string
	ExcludeReservationID string
}

func (q ConflictQuery) Scoped() bool {
	return len(q.ResourceIDs) > 0
}

// Overlaps applies the half-open rule: touching endpoints do not overlap.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

// CollectConflicts filters candidates down to the active reservations that
// collide with q and describes each collision. Stores call it inside their
// transactions so the rule is the same everywhere.
func CollectConflicts(q ConflictQuery, candidates []*Reservation) []Conflict {
	conflicts := []Conflict{}
	for _, r := range candidates {
		if r == nil || r.TenantID != q.TenantID || !r.Status.IsActive() {
			continue
		}
		if q.ExcludeReservationID != "" && r.ID == q.ExcludeReservationID {
			continue
		}
		if !r.Overlaps(q.StartAt, q.EndAt) {
			continue
		}

		conflict := Conflict{
			ReservationID: r.ID,
			StartAt:       r.StartAt,
			EndAt:         r.EndAt,
		}
		if q.Scoped() {
			resource, ok := sharedResource(q.ResourceIDs, r)
			if !ok {
				continue
			}
			conflict.Type = ConflictResourceDoubleBooking
			conflict.ResourceID = resource
		} else {
			conflict.Type = ConflictTimeOverlap
			conflict.ResourceID = r.LockResourceID()
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}

func sharedResource(ids []string, r *Reservation) (string, bool) {
	if r.StaffID != "" && slices.Contains(ids, r.StaffID) {
		return r.StaffID, true
	}
	if r.LocationID != "" && slices.Contains(ids, r.LocationID) {
		return r.LocationID, true
	}
	return "", false
}
