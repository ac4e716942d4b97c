package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/dto"
	"github.com/GlebRadaev/tutorpay/internal/service/bookingservice"
	"github.com/GlebRadaev/tutorpay/pkg/auth"
)

var (
	learner = auth.Actor{ID: uuid.New(), Role: auth.RoleLearner}
	teacher = auth.Actor{ID: uuid.New(), Role: auth.RoleTeacher}
	admin   = auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin}
	start   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func NewMock(t *testing.T) (*BookingHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := New(service, "USD")
	return handler, service
}

func newRequest(method, body string, actor *auth.Actor, params map[string]string) *http.Request {
	r := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	ctx := context.Background()
	if actor != nil {
		ctx = auth.WithActor(ctx, *actor)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:             uuid.New(),
		LearnerID:      learner.ID,
		TeacherID:      teacher.ID,
		SubjectID:      uuid.New(),
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         domain.BookingConfirmed,
		PaymentStatus:  domain.PaymentHeld,
		TotalPrice:     5000,
		Currency:       "USD",
		CommissionRate: decimal.RequireFromString("0.15"),
	}
}

func TestBookingHandler_Create(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	body := fmt.Sprintf(`{"teacher_id":%q,"subject_id":%q,"start":"2024-05-01T10:00:00Z","end":"2024-05-01T11:00:00Z","total_price":5000}`,
		b.TeacherID, b.SubjectID)

	tests := []struct {
		name          string
		body          string
		actor         *auth.Actor
		prepareMock   func()
		expectedCode  int
		expectedError string
	}{
		{
			name:  "Booking created with default currency",
			body:  body,
			actor: &learner,
			prepareMock: func() {
				service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, in bookingservice.CreateInput) (*domain.Booking, error) {
						assert.Equal(t, learner.ID, in.LearnerID)
						assert.Equal(t, b.TeacherID, in.TeacherID)
						assert.True(t, in.Start.Equal(start))
						assert.Equal(t, "USD", in.Currency)
						assert.False(t, in.PaymentHeld)
						return b, nil
					})
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:          "Not authorized",
			body:          body,
			prepareMock:   func() {},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "User not authorized",
		},
		{
			name:          "Malformed body",
			body:          `{"teacher_id":`,
			actor:         &learner,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "invalid request body",
		},
		{
			name:          "Missing price",
			body:          fmt.Sprintf(`{"teacher_id":%q,"subject_id":%q,"start":"2024-05-01T10:00:00Z","end":"2024-05-01T11:00:00Z"}`, b.TeacherID, b.SubjectID),
			actor:         &learner,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "total_price",
		},
		{
			name:  "Teacher not qualified",
			body:  body,
			actor: &learner,
			prepareMock: func() {
				service.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(nil, domain.Precondition("create_booking", domain.ErrTeacherNotQualified, "teacher %s", b.TeacherID))
			},
			expectedCode:  http.StatusUnprocessableEntity,
			expectedError: "teacher does not teach subject",
		},
		{
			name:  "Internal server error",
			body:  body,
			actor: &learner,
			prepareMock: func() {
				service.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			w := httptest.NewRecorder()

			handler.Create(w, newRequest(http.MethodPost, tt.body, tt.actor, nil))

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedError != "" {
				assert.Contains(t, w.Body.String(), tt.expectedError)
			}
			if tt.expectedCode == http.StatusCreated {
				var resp dto.BookingResponseDTO
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, b.ID, resp.ID)
				assert.Equal(t, "0.15", resp.CommissionRate)
				assert.Equal(t, "confirmed", resp.Status)
			}
		})
	}
}

func TestBookingHandler_Get(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	stranger := auth.Actor{ID: uuid.New(), Role: auth.RoleLearner}

	tests := []struct {
		name         string
		id           string
		actor        *auth.Actor
		prepareMock  func()
		expectedCode int
	}{
		{
			name:  "Learner sees own booking",
			id:    b.ID.String(),
			actor: &learner,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Admin sees any booking",
			id:    b.ID.String(),
			actor: &admin,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:  "Stranger is told it does not exist",
			id:    b.ID.String(),
			actor: &stranger,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:  "Missing booking",
			id:    b.ID.String(),
			actor: &learner,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(nil, fmt.Errorf("booking %s: %w", b.ID, domain.ErrNotFound))
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "Malformed id",
			id:           "42",
			actor:        &learner,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			w := httptest.NewRecorder()

			handler.Get(w, newRequest(http.MethodGet, "", tt.actor, map[string]string{"id": tt.id}))

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestBookingHandler_Cancel(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	params := map[string]string{"id": b.ID.String()}

	tests := []struct {
		name          string
		body          string
		prepareMock   func()
		expectedCode  int
		expectedError string
	}{
		{
			name: "Cancelled with refund",
			body: `{"reason":"learner unavailable"}`,
			prepareMock: func() {
				cancelled := *b
				cancelled.Status = domain.BookingCancelled
				cancelled.PaymentStatus = domain.PaymentRefunded
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().Cancel(gomock.Any(), b.ID, "learner unavailable", learner.ID).Return(&cancelled, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:          "Reason is required",
			body:          `{}`,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "reason: required",
		},
		{
			name: "Already completed",
			body: `{"reason":"too late"}`,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().Cancel(gomock.Any(), b.ID, "too late", learner.ID).
					Return(nil, domain.Precondition("cancel", domain.ErrInvalidStatus, "booking is completed/released"))
			},
			expectedCode:  http.StatusConflict,
			expectedError: "invalid status for operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			w := httptest.NewRecorder()

			handler.Cancel(w, newRequest(http.MethodPost, tt.body, &learner, params))

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedError != "" {
				assert.Contains(t, w.Body.String(), tt.expectedError)
			}
			if tt.expectedCode == http.StatusOK {
				var resp dto.BookingResponseDTO
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "refunded", resp.PaymentStatus)
			}
		})
	}
}

func TestBookingHandler_RescheduleFlow(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	requestID := uuid.New()
	newStart := start.Add(48 * time.Hour)

	t.Run("Request is created", func(t *testing.T) {
		service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
		service.EXPECT().RequestReschedule(gomock.Any(), b.ID, teacher.ID, gomock.Any(), gomock.Any(), "travelling").
			Return(&domain.RescheduleRequest{
				ID: requestID, BookingID: b.ID, RequestedBy: teacher.ID,
				NewStart: newStart, NewEnd: newStart.Add(time.Hour), Reason: "travelling", Status: domain.ReschedulePending,
			}, nil)
		w := httptest.NewRecorder()

		handler.RequestReschedule(w, newRequest(http.MethodPost,
			`{"start":"2024-05-03T10:00:00Z","end":"2024-05-03T11:00:00Z","reason":"travelling"}`,
			&teacher, map[string]string{"id": b.ID.String()}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp dto.RescheduleResponseDTO
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, requestID, resp.ID)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("Decision is required", func(t *testing.T) {
		w := httptest.NewRecorder()

		handler.RespondReschedule(w, newRequest(http.MethodPost, `{}`, &learner,
			map[string]string{"id": b.ID.String(), "rid": requestID.String()}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Request is rejected", func(t *testing.T) {
		service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
		service.EXPECT().RespondReschedule(gomock.Any(), b.ID, requestID, learner.ID, false).Return(b, nil)
		w := httptest.NewRecorder()

		handler.RespondReschedule(w, newRequest(http.MethodPost, `{"approve":false}`, &learner,
			map[string]string{"id": b.ID.String(), "rid": requestID.String()}))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Requester cannot answer their own request", func(t *testing.T) {
		service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
		service.EXPECT().RespondReschedule(gomock.Any(), b.ID, requestID, teacher.ID, true).
			Return(nil, domain.Precondition("respond_reschedule", domain.ErrForbidden, "own request"))
		w := httptest.NewRecorder()

		handler.RespondReschedule(w, newRequest(http.MethodPost, `{"approve":true}`, &teacher,
			map[string]string{"id": b.ID.String(), "rid": requestID.String()}))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Direct reschedule into the past", func(t *testing.T) {
		service.EXPECT().Reschedule(gomock.Any(), b.ID, gomock.Any(), gomock.Any(), "").
			Return(nil, domain.Precondition("reschedule", domain.ErrInvalidSchedule, "start is in the past"))
		w := httptest.NewRecorder()

		handler.Reschedule(w, newRequest(http.MethodPost, `{"start":"2020-01-01T10:00:00Z","end":"2020-01-01T11:00:00Z"}`,
			&admin, map[string]string{"id": b.ID.String()}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestBookingHandler_MarkAttendance(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	params := map[string]string{"id": b.ID.String()}

	tests := []struct {
		name         string
		body         string
		prepareMock  func()
		expectedCode int
	}{
		{
			name: "Teacher records own attendance",
			body: `{"party":"teacher","attended":true,"actual_duration_minutes":55}`,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().MarkAttendance(gomock.Any(), b.ID, domain.PartyTeacher, true, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ uuid.UUID, _ domain.Party, _ bool, minutes *int) (*domain.Booking, error) {
						require.NotNil(t, minutes)
						assert.Equal(t, 55, *minutes)
						return b, nil
					})
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Teacher cannot record the student",
			body: `{"party":"student","attended":false}`,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusForbidden,
		},
		{
			name:         "Unknown party",
			body:         `{"party":"parent","attended":true}`,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Attended flag missing",
			body:         `{"party":"teacher"}`,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			w := httptest.NewRecorder()

			handler.MarkAttendance(w, newRequest(http.MethodPost, tt.body, &teacher, params))

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestBookingHandler_Transitions(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	params := map[string]string{"id": b.ID.String()}

	tests := []struct {
		name         string
		body         string
		call         func(w http.ResponseWriter, r *http.Request)
		prepareMock  func()
		expectedCode int
	}{
		{
			name: "Payment confirmed",
			call: handler.ConfirmPayment,
			prepareMock: func() {
				service.EXPECT().ConfirmPayment(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Approval of an unpaid booking",
			call: handler.Approve,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().Approve(gomock.Any(), b.ID).
					Return(nil, domain.Precondition("approve", domain.ErrInvalidStatus, "booking is pending/pending"))
			},
			expectedCode: http.StatusConflict,
		},
		{
			name: "Teacher reassigned",
			body: fmt.Sprintf(`{"teacher_id":%q,"reason":"sick leave"}`, teacher.ID),
			call: handler.ReassignTeacher,
			prepareMock: func() {
				service.EXPECT().ReassignTeacher(gomock.Any(), b.ID, teacher.ID, "sick leave").Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Completed",
			call: handler.Complete,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().Complete(gomock.Any(), b.ID).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "No-show settled",
			body: `{"who":"teacher"}`,
			call: handler.DetectNoShow,
			prepareMock: func() {
				service.EXPECT().DetectNoShow(gomock.Any(), b.ID, domain.NoShowTeacher).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "No-show party unknown",
			body:         `{"who":"nobody"}`,
			call:         handler.DetectNoShow,
			prepareMock:  func() {},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Dispute raised",
			body: `{"reason":"teacher left early"}`,
			call: handler.RaiseDispute,
			prepareMock: func() {
				service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
				service.EXPECT().RaiseDispute(gomock.Any(), b.ID, "teacher left early", teacher.ID).Return(b, nil)
			},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			w := httptest.NewRecorder()

			tt.call(w, newRequest(http.MethodPost, tt.body, &teacher, params))

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestBookingHandler_OutsiderCannotAct(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	stranger := auth.Actor{ID: uuid.New(), Role: auth.RoleLearner}
	otherTeacher := auth.Actor{ID: uuid.New(), Role: auth.RoleTeacher}
	params := map[string]string{"id": b.ID.String(), "rid": uuid.New().String()}

	tests := []struct {
		name         string
		body         string
		actor        auth.Actor
		call         func(w http.ResponseWriter, r *http.Request)
		expectedCode int
	}{
		{name: "Stranger cancels", body: `{"reason":"because"}`, actor: stranger, call: handler.Cancel, expectedCode: http.StatusNotFound},
		{name: "Stranger records attendance", body: `{"party":"teacher","attended":false}`, actor: stranger, call: handler.MarkAttendance, expectedCode: http.StatusNotFound},
		{name: "Stranger disputes", body: `{"reason":"because"}`, actor: stranger, call: handler.RaiseDispute, expectedCode: http.StatusNotFound},
		{
			name:         "Stranger asks to reschedule",
			body:         `{"start":"2024-05-03T10:00:00Z","end":"2024-05-03T11:00:00Z"}`,
			actor:        stranger,
			call:         handler.RequestReschedule,
			expectedCode: http.StatusNotFound,
		},
		{name: "Stranger answers a reschedule", body: `{"approve":true}`, actor: stranger, call: handler.RespondReschedule, expectedCode: http.StatusNotFound},
		{name: "Other teacher approves", actor: otherTeacher, call: handler.Approve, expectedCode: http.StatusNotFound},
		{name: "Other teacher completes", actor: otherTeacher, call: handler.Complete, expectedCode: http.StatusNotFound},
		{name: "Learner completes own booking", actor: learner, call: handler.Complete, expectedCode: http.StatusForbidden},
		{name: "Learner records the teacher", body: `{"party":"teacher","attended":false}`, actor: learner, call: handler.MarkAttendance, expectedCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil)
			w := httptest.NewRecorder()

			tt.call(w, newRequest(http.MethodPost, tt.body, &tt.actor, params))

			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestBookingHandler_AdminActsOnAnyBooking(t *testing.T) {
	handler, service := NewMock(t)
	b := sampleBooking()
	params := map[string]string{"id": b.ID.String()}

	service.EXPECT().Get(gomock.Any(), b.ID).Return(b, nil).Times(2)
	service.EXPECT().MarkAttendance(gomock.Any(), b.ID, domain.PartyStudent, false, nil).Return(b, nil)
	service.EXPECT().Complete(gomock.Any(), b.ID).Return(b, nil)

	w := httptest.NewRecorder()
	handler.MarkAttendance(w, newRequest(http.MethodPost, `{"party":"student","attended":false}`, &admin, params))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.Complete(w, newRequest(http.MethodPost, "", &admin, params))
	assert.Equal(t, http.StatusOK, w.Code)
}
