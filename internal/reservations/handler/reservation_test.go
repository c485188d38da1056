package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	reservationerrors "agendly/internal/reservations/errors"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
	"agendly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockReservationService struct {
	createFunc         func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error)
	createWithLockFunc func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error)
	getByIDFunc        func(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	rescheduleFunc     func(ctx context.Context, tenantID, id string, req *model.RescheduleRequest) (*model.Reservation, error)
	cancelFunc         func(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	checkFunc          func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.ConflictResult, error)
	alternativesFunc   func(ctx context.Context, tenantID string, req *model.AlternativesRequest) ([]model.TimeWindow, error)
}

func (m *mockReservationService) Create(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
	return m.createFunc(ctx, tenantID, req)
}

func (m *mockReservationService) CreateWithLock(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
	return m.createWithLockFunc(ctx, tenantID, req)
}

func (m *mockReservationService) GetByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	return m.getByIDFunc(ctx, tenantID, id)
}

func (m *mockReservationService) Reschedule(ctx context.Context, tenantID, id string, req *model.RescheduleRequest) (*model.Reservation, error) {
	return m.rescheduleFunc(ctx, tenantID, id, req)
}

func (m *mockReservationService) Cancel(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	return m.cancelFunc(ctx, tenantID, id)
}

func (m *mockReservationService) CheckBookingConflicts(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.ConflictResult, error) {
	return m.checkFunc(ctx, tenantID, req)
}

func (m *mockReservationService) SuggestAlternatives(ctx context.Context, tenantID string, req *model.AlternativesRequest) ([]model.TimeWindow, error) {
	return m.alternativesFunc(ctx, tenantID, req)
}

func (m *mockReservationService) Wait() {}

const bookingBody = `{"start_at":"2025-03-10T10:00:00Z","end_at":"2025-03-10T11:00:00Z","staff_id":"staff-a","customer_phone":"+972501234567"}`

var testLogger = logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})

func newRouter(svc *mockReservationService) *httprouter.Router {
	router := httprouter.New()
	NewReservationHandler(svc, time.Millisecond, testLogger).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func reservationFrom(tenantID string, req *model.CreateReservationRequest) *model.Reservation {
	return &model.Reservation{
		ID:       "res-1",
		TenantID: tenantID,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		StaffID:  req.StaffID,
		Status:   model.StatusConfirmed,
	}
}

func TestCreate(t *testing.T) {
	conflictErr := reservationerrors.NewConflict([]model.Conflict{{
		ReservationID: "res-0",
		StartAt:       time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
		EndAt:         time.Date(2025, 3, 10, 11, 30, 0, 0, time.UTC),
		ResourceID:    "staff-a",
		Type:          model.ConflictResourceDoubleBooking,
	}})

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       bookingBody,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "conflict",
			body:       bookingBody,
			serviceErr: conflictErr,
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
		},
		{
			name:       "validation",
			body:       bookingBody,
			serviceErr: apperrors.Validation("Reservation validation failed", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "malformed body",
			body:       `{"start_at":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeInvalidInput,
		},
		{
			name:       "persistence failure",
			body:       bookingBody,
			serviceErr: apperrors.Persistence("Failed to create reservation", context.DeadlineExceeded),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodePersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTenant string
			svc := &mockReservationService{
				createFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
					gotTenant = tenantID
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return reservationFrom(tenantID, req), nil
				},
			}

			w := serve(newRouter(svc), http.MethodPost, "/api/v1/tenants/tenant-1/reservations", tt.body, nil)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				var body apperrors.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
				}
				if tt.wantCode == apperrors.CodeConflict {
					conflicts, ok := body.Details["conflicts"].([]any)
					if !ok || len(conflicts) != 1 {
						t.Errorf("expected one conflict in details, got %v", body.Details)
					}
				}
				return
			}
			if gotTenant != "tenant-1" {
				t.Errorf("expected tenant-1, got %q", gotTenant)
			}
			var body struct {
				Data model.Reservation `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Data.ID != "res-1" || body.Data.StaffID != "staff-a" {
				t.Errorf("unexpected reservation: %+v", body.Data)
			}
		})
	}
}

func TestPublicBook(t *testing.T) {
	t.Run("session from header", func(t *testing.T) {
		var gotSession string
		svc := &mockReservationService{
			createWithLockFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
				gotSession = req.SessionID
				return reservationFrom(tenantID, req), nil
			},
		}

		w := serve(newRouter(svc), http.MethodPost, "/api/v1/public/tenants/tenant-1/bookings", bookingBody,
			map[string]string{HeaderSessionID: "browser-42"})

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		if gotSession != "browser-42" {
			t.Errorf("expected header session, got %q", gotSession)
		}
		if w.Header().Get(HeaderSessionID) != "browser-42" {
			t.Errorf("expected session echoed, got %q", w.Header().Get(HeaderSessionID))
		}
	})

	t.Run("generated session", func(t *testing.T) {
		var gotSession string
		svc := &mockReservationService{
			createWithLockFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
				gotSession = req.SessionID
				return reservationFrom(tenantID, req), nil
			},
		}

		w := serve(newRouter(svc), http.MethodPost, "/api/v1/public/tenants/tenant-1/bookings", bookingBody, nil)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
		if gotSession == "" {
			t.Error("expected a generated session id")
		}
	})

	t.Run("retries once on held slot", func(t *testing.T) {
		var calls atomic.Int32
		svc := &mockReservationService{
			createWithLockFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
				if calls.Add(1) == 1 {
					return nil, apperrors.SlotLocked("Slot is being booked by another session", nil)
				}
				return reservationFrom(tenantID, req), nil
			},
		}

		w := serve(newRouter(svc), http.MethodPost, "/api/v1/public/tenants/tenant-1/bookings", bookingBody, nil)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201 after retry, got %d: %s", w.Code, w.Body.String())
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", calls.Load())
		}
	})

	t.Run("gives up after one retry", func(t *testing.T) {
		var calls atomic.Int32
		svc := &mockReservationService{
			createWithLockFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
				calls.Add(1)
				return nil, apperrors.SlotLocked("Slot is being booked by another session", nil)
			},
		}

		w := serve(newRouter(svc), http.MethodPost, "/api/v1/public/tenants/tenant-1/bookings", bookingBody, nil)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 attempts, got %d", calls.Load())
		}
	})

	t.Run("conflict is not retried", func(t *testing.T) {
		var calls atomic.Int32
		svc := &mockReservationService{
			createWithLockFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
				calls.Add(1)
				return nil, reservationerrors.NewConflict(nil)
			},
		}

		w := serve(newRouter(svc), http.MethodPost, "/api/v1/public/tenants/tenant-1/bookings", bookingBody, nil)

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		if calls.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", calls.Load())
		}
	})
}

func TestGetByID(t *testing.T) {
	svc := &mockReservationService{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
			if id != "res-1" {
				return nil, apperrors.NotFoundWithID("Reservation", id)
			}
			return &model.Reservation{ID: id, TenantID: tenantID}, nil
		},
	}
	router := newRouter(svc)

	if w := serve(router, http.MethodGet, "/api/v1/tenants/tenant-1/reservations/res-1", "", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/v1/tenants/tenant-1/reservations/missing", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestReschedule(t *testing.T) {
	var got *model.RescheduleRequest
	svc := &mockReservationService{
		rescheduleFunc: func(ctx context.Context, tenantID, id string, req *model.RescheduleRequest) (*model.Reservation, error) {
			got = req
			return &model.Reservation{ID: id, TenantID: tenantID, StartAt: req.StartAt, EndAt: req.EndAt}, nil
		},
	}

	w := serve(newRouter(svc), http.MethodPatch, "/api/v1/tenants/tenant-1/reservations/res-1",
		`{"start_at":"2025-03-10T12:00:00Z","end_at":"2025-03-10T13:00:00Z"}`,
		map[string]string{HeaderSessionID: "staff-console"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got == nil || got.SessionID != "staff-console" {
		t.Errorf("expected header session passed through, got %+v", got)
	}
	if !got.StartAt.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start: %v", got.StartAt)
	}
}

func TestCancel(t *testing.T) {
	svc := &mockReservationService{
		cancelFunc: func(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
			return &model.Reservation{ID: id, TenantID: tenantID, Status: model.StatusCancelled}, nil
		},
	}

	w := serve(newRouter(svc), http.MethodPost, "/api/v1/tenants/tenant-1/reservations/res-1/cancel", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data model.Reservation `json:"data"`
	}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body.Data.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", body.Data.Status)
	}
}

func TestCheckConflicts(t *testing.T) {
	svc := &mockReservationService{
		checkFunc: func(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.ConflictResult, error) {
			return model.NewConflictResult([]model.Conflict{{
				StartAt:    req.StartAt,
				EndAt:      req.EndAt,
				ResourceID: req.StaffID,
				Type:       model.ConflictStaffUnavailable,
				Reason:     model.ReasonDuringBreak,
			}}), nil
		},
	}

	w := serve(newRouter(svc), http.MethodPost, "/api/v1/tenants/tenant-1/conflict-checks", bookingBody, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data model.ConflictResult `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Data.HasConflict || body.Data.Conflicts[0].Reason != model.ReasonDuringBreak {
		t.Errorf("unexpected result: %+v", body.Data)
	}
}

func TestAlternatives(t *testing.T) {
	var got *model.AlternativesRequest
	svc := &mockReservationService{
		alternativesFunc: func(ctx context.Context, tenantID string, req *model.AlternativesRequest) ([]model.TimeWindow, error) {
			got = req
			return []model.TimeWindow{{
				StartAt: req.StartAt.Add(15 * time.Minute),
				EndAt:   req.EndAt.Add(15 * time.Minute),
			}}, nil
		},
	}

	w := serve(newRouter(svc), http.MethodPost, "/api/v1/tenants/tenant-1/alternative-slots",
		`{"start_at":"2025-03-10T10:00:00Z","end_at":"2025-03-10T11:00:00Z","staff_id":"staff-a","limit":5}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got == nil || got.Limit != 5 || got.StaffID != "staff-a" {
		t.Errorf("request not passed through: %+v", got)
	}
	var body struct {
		Data []model.TimeWindow `json:"data"`
	}
	_ = json.NewDecoder(w.Body).Decode(&body)
	if len(body.Data) != 1 {
		t.Errorf("expected one window, got %d", len(body.Data))
	}
}
