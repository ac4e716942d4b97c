package bookingservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/notify"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	"github.com/GlebRadaev/tutorpay/internal/service/policy"
)

var (
	now       = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	learnerID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	teacherID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	subjectID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	bookingID = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

type mocks struct {
	repo        *MockRepo
	reschedules *MockRescheduleRepo
	subjects    *MockSubjectRepo
	ledger      *MockLedger
	publisher   *notify.MockPublisher
}

func NewMock(t *testing.T) (*Service, *mocks) {
	ctrl := gomock.NewController(t)
	m := &mocks{
		repo:        NewMockRepo(ctrl),
		reschedules: NewMockRescheduleRepo(ctrl),
		subjects:    NewMockSubjectRepo(ctrl),
		ledger:      NewMockLedger(ctrl),
		publisher:   notify.NewMockPublisher(ctrl),
	}
	txManager := pg.NewMockTXManager(ctrl)
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn pg.TransactionalFn) error { return fn(ctx) }).AnyTimes()

	service := New(Deps{
		Repo:        m.repo,
		Reschedules: m.reschedules,
		Subjects:    m.subjects,
		Ledger:      m.ledger,
		Policy:      policy.Default(),
		TxManager:   txManager,
		Publisher:   m.publisher,
	}, decimal.RequireFromString("0.15"))
	service.now = func() time.Time { return now }
	return service, m
}

func booking(status domain.BookingStatus, payment domain.PaymentStatus) *domain.Booking {
	return &domain.Booking{
		ID:             bookingID,
		LearnerID:      learnerID,
		TeacherID:      teacherID,
		SubjectID:      subjectID,
		StartTime:      now.Add(24 * time.Hour),
		EndTime:        now.Add(25 * time.Hour),
		Status:         status,
		PaymentStatus:  payment,
		TotalPrice:     10000,
		Currency:       "USD",
		CommissionRate: decimal.RequireFromString("0.15"),
	}
}

// expectPublish captures the events of the next Publish call.
func expectPublish(m *mocks, got *[]domain.Event) {
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Do(func(_ context.Context, events ...domain.Event) {
		*got = events
	})
}

func TestCreate(t *testing.T) {
	service, m := NewMock(t)
	valid := CreateInput{
		LearnerID:  learnerID,
		TeacherID:  teacherID,
		SubjectID:  subjectID,
		Start:      now.Add(time.Hour),
		End:        now.Add(2 * time.Hour),
		TotalPrice: 10000,
		Currency:   "USD",
	}

	tests := []struct {
		name            string
		input           func() CreateInput
		prepareMock     func()
		expectedStatus  domain.State
		expectedErrorIs error
	}{
		{
			name:  "Unpaid reservation",
			input: func() CreateInput { return valid },
			prepareMock: func() {
				m.subjects.EXPECT().Teaches(gomock.Any(), teacherID, subjectID).Return(true, nil)
				m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedStatus: domain.State{Status: domain.BookingPending, Payment: domain.PaymentPending},
		},
		{
			name: "Paid reservation awaits approval",
			input: func() CreateInput {
				in := valid
				in.PaymentHeld = true
				return in
			},
			prepareMock: func() {
				m.subjects.EXPECT().Teaches(gomock.Any(), teacherID, subjectID).Return(true, nil)
				m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
			},
			expectedStatus: domain.State{Status: domain.BookingAwaitingApproval, Payment: domain.PaymentHeld},
		},
		{
			name: "Start in the past",
			input: func() CreateInput {
				in := valid
				in.Start = now.Add(-time.Minute)
				return in
			},
			expectedErrorIs: domain.ErrInvalidSchedule,
		},
		{
			name: "Zero price",
			input: func() CreateInput {
				in := valid
				in.TotalPrice = 0
				return in
			},
			expectedErrorIs: domain.ErrInvalidAmount,
		},
		{
			name:  "Teacher does not teach subject",
			input: func() CreateInput { return valid },
			prepareMock: func() {
				m.subjects.EXPECT().Teaches(gomock.Any(), teacherID, subjectID).Return(false, nil)
			},
			expectedErrorIs: domain.ErrTeacherNotQualified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			b, err := service.Create(context.Background(), tt.input())

			if tt.expectedErrorIs != nil {
				require.ErrorIs(t, err, tt.expectedErrorIs)
				assert.True(t, domain.IsPrecondition(err))
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, b.State())
			assert.True(t, decimal.RequireFromString("0.15").Equal(b.CommissionRate))
			assert.NotEqual(t, uuid.Nil, b.ID)
		})
	}
}

func TestGet(t *testing.T) {
	service, m := NewMock(t)

	m.repo.EXPECT().Get(gomock.Any(), bookingID).Return(nil, nil)
	_, err := service.Get(context.Background(), bookingID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m.repo.EXPECT().Get(gomock.Any(), bookingID).Return(booking(domain.BookingConfirmed, domain.PaymentHeld), nil)
	b, err := service.Get(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, bookingID, b.ID)
}

func TestConfirmPaymentAndApprove(t *testing.T) {
	service, m := NewMock(t)
	b := booking(domain.BookingPending, domain.PaymentPending)
	var events []domain.Event

	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingPending, Payment: domain.PaymentPending}).Return(nil)
	expectPublish(m, &events)

	got, err := service.ConfirmPayment(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.State{Status: domain.BookingAwaitingApproval, Payment: domain.PaymentHeld}, got.State())
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventPaymentHeld, events[0].Type)

	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingAwaitingApproval, Payment: domain.PaymentHeld}).Return(nil)
	expectPublish(m, &events)

	got, err = service.Approve(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventBookingApproved, events[0].Type)
	assert.Equal(t, []uuid.UUID{learnerID, teacherID}, events[0].Recipients)
}

func TestApprove_InvalidStatus(t *testing.T) {
	service, m := NewMock(t)
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(booking(domain.BookingCompleted, domain.PaymentReleased), nil)

	b, err := service.Approve(context.Background(), bookingID)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.Contains(t, err.Error(), "invalid status for operation")
}

func TestCancel(t *testing.T) {
	service, m := NewMock(t)
	actor := uuid.New()

	tests := []struct {
		name            string
		booking         func() *domain.Booking
		prepareMock     func(b *domain.Booking)
		expectedState   domain.State
		expectedSplit   *domain.Split
		expectedErrorIs error
	}{
		{
			name:    "Held funds refunded in full",
			booking: func() *domain.Booking { return booking(domain.BookingConfirmed, domain.PaymentHeld) },
			prepareMock: func(b *domain.Booking) {
				m.ledger.EXPECT().Settle(gomock.Any(), b, domain.Split{Refund: 10000}, gomock.Any()).Return(nil)
				m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingConfirmed, Payment: domain.PaymentHeld}).Return(nil)
			},
			expectedState: domain.State{Status: domain.BookingCancelled, Payment: domain.PaymentRefunded},
			expectedSplit: &domain.Split{Refund: 10000},
		},
		{
			name:    "Unpaid booking cancelled without money movement",
			booking: func() *domain.Booking { return booking(domain.BookingPending, domain.PaymentPending) },
			prepareMock: func(b *domain.Booking) {
				m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
			},
			expectedState: domain.State{Status: domain.BookingCancelled, Payment: domain.PaymentPending},
		},
		{
			name:            "Completed booking cannot be cancelled",
			booking:         func() *domain.Booking { return booking(domain.BookingCompleted, domain.PaymentReleased) },
			prepareMock:     func(b *domain.Booking) {},
			expectedErrorIs: domain.ErrInvalidStatus,
		},
		{
			name:            "Disputed booking cannot be cancelled",
			booking:         func() *domain.Booking { return booking(domain.BookingDisputed, domain.PaymentDisputed) },
			prepareMock:     func(b *domain.Booking) {},
			expectedErrorIs: domain.ErrInvalidStatus,
		},
		{
			name:    "Ledger failure leaves booking untouched",
			booking: func() *domain.Booking { return booking(domain.BookingConfirmed, domain.PaymentHeld) },
			prepareMock: func(b *domain.Booking) {
				m.ledger.EXPECT().Settle(gomock.Any(), b, gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			expectedErrorIs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.booking()
			m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
			tt.prepareMock(b)
			var events []domain.Event
			if tt.expectedState.Status != "" {
				expectPublish(m, &events)
			}

			got, err := service.Cancel(context.Background(), bookingID, "learner is ill", actor)

			if tt.expectedState.Status == "" {
				require.Error(t, err)
				if tt.expectedErrorIs != nil {
					assert.ErrorIs(t, err, tt.expectedErrorIs)
				}
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedState, got.State())
			require.NotNil(t, got.CancellationReason)
			assert.Equal(t, "learner is ill", *got.CancellationReason)
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventBookingCancelled, events[0].Type)
			assert.Equal(t, "learner is ill", events[0].Reason)
			assert.Equal(t, &actor, events[0].ActorID)
			assert.Equal(t, tt.expectedSplit, events[0].Split)
		})
	}
}

func TestReassignTeacher(t *testing.T) {
	service, m := NewMock(t)
	newTeacher := uuid.New()

	t.Run("Teacher without the subject is rejected", func(t *testing.T) {
		b := booking(domain.BookingConfirmed, domain.PaymentHeld)
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
		m.subjects.EXPECT().Teaches(gomock.Any(), newTeacher, subjectID).Return(false, nil)

		got, err := service.ReassignTeacher(context.Background(), bookingID, newTeacher, "schedule clash")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, domain.ErrTeacherNotQualified)
		assert.True(t, domain.IsPrecondition(err))
		assert.Equal(t, teacherID, b.TeacherID)
	})

	t.Run("Qualified teacher is assigned", func(t *testing.T) {
		b := booking(domain.BookingDisputed, domain.PaymentDisputed)
		var events []domain.Event
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
		m.subjects.EXPECT().Teaches(gomock.Any(), newTeacher, subjectID).Return(true, nil)
		m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingDisputed, Payment: domain.PaymentDisputed}).Return(nil)
		expectPublish(m, &events)

		got, err := service.ReassignTeacher(context.Background(), bookingID, newTeacher, "schedule clash")

		require.NoError(t, err)
		assert.Equal(t, newTeacher, got.TeacherID)
		assert.Equal(t, domain.BookingDisputed, got.Status)
		require.Len(t, events, 1)
		assert.ElementsMatch(t, []uuid.UUID{learnerID, newTeacher, teacherID}, events[0].Recipients)
	})

	t.Run("Same teacher is rejected", func(t *testing.T) {
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(booking(domain.BookingConfirmed, domain.PaymentHeld), nil)

		_, err := service.ReassignTeacher(context.Background(), bookingID, teacherID, "")

		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestReschedule(t *testing.T) {
	service, m := NewMock(t)

	t.Run("Start must be in the future", func(t *testing.T) {
		_, err := service.Reschedule(context.Background(), bookingID, now, now.Add(time.Hour), "")
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("End must follow start", func(t *testing.T) {
		_, err := service.Reschedule(context.Background(), bookingID, now.Add(2*time.Hour), now.Add(time.Hour), "")
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	})

	t.Run("Moves window and confirms", func(t *testing.T) {
		b := booking(domain.BookingRescheduling, domain.PaymentHeld)
		start, end := now.Add(48*time.Hour), now.Add(49*time.Hour)
		var events []domain.Event
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
		m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingRescheduling, Payment: domain.PaymentHeld}).Return(nil)
		expectPublish(m, &events)

		got, err := service.Reschedule(context.Background(), bookingID, start, end, "teacher travel")

		require.NoError(t, err)
		assert.Equal(t, domain.BookingConfirmed, got.Status)
		assert.Equal(t, start, got.StartTime)
		assert.Equal(t, end, got.EndTime)
		assert.Equal(t, domain.EventBookingRescheduled, events[0].Type)
	})
}

func TestRescheduleRequestFlow(t *testing.T) {
	service, m := NewMock(t)
	start, end := now.Add(48*time.Hour), now.Add(49*time.Hour)
	b := booking(domain.BookingConfirmed, domain.PaymentHeld)
	originalStart := b.StartTime

	var req *domain.RescheduleRequest
	var events []domain.Event
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.reschedules.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.RescheduleRequest) error {
			req = r
			return nil
		})
	m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
	expectPublish(m, &events)

	created, err := service.RequestReschedule(context.Background(), bookingID, learnerID, start, end, "exam")
	require.NoError(t, err)
	assert.Equal(t, req, created)
	assert.Equal(t, domain.ReschedulePending, created.Status)
	assert.Equal(t, originalStart, created.OriginalStart)
	assert.Equal(t, domain.BookingRescheduling, b.Status)
	assert.Equal(t, domain.EventRescheduleRequest, events[0].Type)

	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.reschedules.EXPECT().Get(gomock.Any(), created.ID).Return(req, nil)
	m.reschedules.EXPECT().Decide(gomock.Any(), req).Return(nil)
	m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingRescheduling, Payment: domain.PaymentHeld}).Return(nil)
	expectPublish(m, &events)

	got, err := service.RespondReschedule(context.Background(), bookingID, created.ID, teacherID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, start, got.StartTime)
	assert.Equal(t, domain.RescheduleApproved, req.Status)
	assert.Equal(t, domain.EventBookingRescheduled, events[0].Type)
	assert.Equal(t, teacherID, *events[0].ActorID)

	t.Run("Answered request cannot be answered again", func(t *testing.T) {
		b.Status = domain.BookingRescheduling
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
		m.reschedules.EXPECT().Get(gomock.Any(), created.ID).Return(req, nil)

		_, err := service.RespondReschedule(context.Background(), bookingID, created.ID, teacherID, false)

		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})
}

func TestRequestReschedule_NotParticipant(t *testing.T) {
	service, m := NewMock(t)
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(booking(domain.BookingConfirmed, domain.PaymentHeld), nil)

	_, err := service.RequestReschedule(context.Background(), bookingID, uuid.New(), now.Add(time.Hour), now.Add(2*time.Hour), "")

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRespondReschedule_OwnRequest(t *testing.T) {
	service, m := NewMock(t)
	b := booking(domain.BookingRescheduling, domain.PaymentHeld)
	originalStart := b.StartTime
	req := &domain.RescheduleRequest{
		ID:          uuid.New(),
		BookingID:   bookingID,
		RequestedBy: learnerID,
		NewStart:    now.Add(72 * time.Hour),
		NewEnd:      now.Add(73 * time.Hour),
		Status:      domain.ReschedulePending,
	}
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.reschedules.EXPECT().Get(gomock.Any(), req.ID).Return(req, nil)

	got, err := service.RespondReschedule(context.Background(), bookingID, req.ID, learnerID, true)

	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Nil(t, got)
	assert.Equal(t, domain.ReschedulePending, req.Status)
	assert.Equal(t, domain.BookingRescheduling, b.Status)
	assert.Equal(t, originalStart, b.StartTime)
}

func TestRespondReschedule_Declined(t *testing.T) {
	service, m := NewMock(t)
	b := booking(domain.BookingRescheduling, domain.PaymentHeld)
	originalStart := b.StartTime
	req := &domain.RescheduleRequest{
		ID:          uuid.New(),
		BookingID:   bookingID,
		RequestedBy: teacherID,
		NewStart:    now.Add(72 * time.Hour),
		NewEnd:      now.Add(73 * time.Hour),
		Status:      domain.ReschedulePending,
	}
	var events []domain.Event
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.reschedules.EXPECT().Get(gomock.Any(), req.ID).Return(req, nil)
	m.reschedules.EXPECT().Decide(gomock.Any(), req).Return(nil)
	m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
	expectPublish(m, &events)

	got, err := service.RespondReschedule(context.Background(), bookingID, req.ID, learnerID, false)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, originalStart, got.StartTime)
	assert.Equal(t, domain.RescheduleRejected, req.Status)
	assert.Equal(t, domain.EventRescheduleDeclined, events[0].Type)
}

func TestMarkAttendance(t *testing.T) {
	service, m := NewMock(t)
	b := booking(domain.BookingConfirmed, domain.PaymentHeld)
	duration := 55
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
	m.publisher.EXPECT().Publish(gomock.Any())

	got, err := service.MarkAttendance(context.Background(), bookingID, domain.PartyTeacher, true, &duration)

	require.NoError(t, err)
	assert.True(t, got.TeacherAttended)
	assert.False(t, got.StudentAttended)
	assert.Equal(t, 55, *got.ActualDurationMinutes)

	negative := -1
	_, err = service.MarkAttendance(context.Background(), bookingID, domain.PartyStudent, true, &negative)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestComplete(t *testing.T) {
	service, m := NewMock(t)
	b := booking(domain.BookingConfirmed, domain.PaymentHeld)
	var events []domain.Event
	split := domain.Split{TeacherEarnings: 8500, PlatformCommission: 1500}
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
	m.ledger.EXPECT().Settle(gomock.Any(), b, split, gomock.Any()).Return(nil)
	m.repo.EXPECT().Update(gomock.Any(), b, domain.State{Status: domain.BookingConfirmed, Payment: domain.PaymentHeld}).Return(nil)
	expectPublish(m, &events)

	got, err := service.Complete(context.Background(), bookingID)

	require.NoError(t, err)
	assert.Equal(t, domain.State{Status: domain.BookingCompleted, Payment: domain.PaymentReleased}, got.State())
	assert.Equal(t, &split, events[0].Split)
}

func TestDetectNoShow(t *testing.T) {
	service, m := NewMock(t)

	tests := []struct {
		name          string
		who           domain.NoShowParty
		expectedSplit domain.Split
		expectedPay   domain.PaymentStatus
	}{
		{
			name:          "Student absent",
			who:           domain.NoShowStudent,
			expectedSplit: domain.Split{Refund: 5000, TeacherEarnings: 4250, PlatformCommission: 750},
			expectedPay:   domain.PaymentReleased,
		},
		{
			name:          "Teacher absent",
			who:           domain.NoShowTeacher,
			expectedSplit: domain.Split{Refund: 10000},
			expectedPay:   domain.PaymentRefunded,
		},
		{
			name:          "Both absent",
			who:           domain.NoShowBoth,
			expectedSplit: domain.Split{Refund: 10000},
			expectedPay:   domain.PaymentRefunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := booking(domain.BookingConfirmed, domain.PaymentHeld)
			var events []domain.Event
			m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
			m.ledger.EXPECT().Settle(gomock.Any(), b, tt.expectedSplit, gomock.Any()).Return(nil)
			m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
			expectPublish(m, &events)

			got, err := service.DetectNoShow(context.Background(), bookingID, tt.who)

			require.NoError(t, err)
			assert.Equal(t, domain.BookingNoShow, got.Status)
			assert.Equal(t, tt.expectedPay, got.PaymentStatus)
			assert.Equal(t, tt.who, *got.NoShowParty)
			assert.Equal(t, tt.who, events[0].NoShow)
			assert.Equal(t, tt.expectedSplit, *events[0].Split)
		})
	}

	t.Run("Repeated detection is a no-op", func(t *testing.T) {
		settled := booking(domain.BookingNoShow, domain.PaymentReleased)
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(settled, nil)
		m.publisher.EXPECT().Publish(gomock.Any())

		got, err := service.DetectNoShow(context.Background(), bookingID, domain.NoShowStudent)

		require.NoError(t, err)
		assert.Equal(t, settled, got)
	})

	t.Run("Unknown party", func(t *testing.T) {
		_, err := service.DetectNoShow(context.Background(), bookingID, domain.NoShowParty("guardian"))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

// A cancellation that loses the race to a no-show settlement re-reads the booking and is
// rejected; its own refund is rolled back with the failed attempt.
func TestCancel_LosesRace(t *testing.T) {
	service, m := NewMock(t)
	first := booking(domain.BookingConfirmed, domain.PaymentHeld)
	second := booking(domain.BookingNoShow, domain.PaymentReleased)

	gomock.InOrder(
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(first, nil),
		m.ledger.EXPECT().Settle(gomock.Any(), first, gomock.Any(), gomock.Any()).Return(nil),
		m.repo.EXPECT().Update(gomock.Any(), first, gomock.Any()).Return(domain.ErrStaleState),
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(second, nil),
	)

	got, err := service.Cancel(context.Background(), bookingID, "late", learnerID)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestRaiseDispute(t *testing.T) {
	service, m := NewMock(t)

	t.Run("Freezes held funds", func(t *testing.T) {
		b := booking(domain.BookingConfirmed, domain.PaymentHeld)
		var events []domain.Event
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(b, nil)
		m.repo.EXPECT().Update(gomock.Any(), b, gomock.Any()).Return(nil)
		expectPublish(m, &events)

		got, err := service.RaiseDispute(context.Background(), bookingID, "teacher left early", learnerID)

		require.NoError(t, err)
		assert.Equal(t, domain.State{Status: domain.BookingDisputed, Payment: domain.PaymentDisputed}, got.State())
		assert.Equal(t, now, *got.DisputeRaisedAt)
		assert.Equal(t, learnerID, *got.DisputeRaisedBy)
		assert.Equal(t, domain.EventDisputeRaised, events[0].Type)
	})

	t.Run("Requires held payment", func(t *testing.T) {
		m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(booking(domain.BookingConfirmed, domain.PaymentPending), nil)

		_, err := service.RaiseDispute(context.Background(), bookingID, "no", learnerID)

		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("Requires reason", func(t *testing.T) {
		_, err := service.RaiseDispute(context.Background(), bookingID, "", learnerID)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestApply_NotFound(t *testing.T) {
	service, m := NewMock(t)
	m.repo.EXPECT().GetForUpdate(gomock.Any(), bookingID).Return(nil, nil)

	_, err := service.Complete(context.Background(), bookingID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
