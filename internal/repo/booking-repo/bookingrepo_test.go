package bookingrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)
	return New(mockDB), mockDB
}

var bookingColumns = []string{
	"id", "learner_id", "teacher_id", "subject_id", "start_time", "end_time", "status", "payment_status",
	"total_price", "currency", "commission_rate", "cancellation_reason", "no_show_party",
	"dispute_raised_at", "dispute_raised_by", "dispute_reason", "dispute_resolved_at", "dispute_resolution", "dispute_outcome",
	"teacher_attended", "student_attended", "actual_duration_minutes", "created_at", "updated_at",
}

func sampleBooking() *domain.Booking {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:             uuid.New(),
		LearnerID:      uuid.New(),
		TeacherID:      uuid.New(),
		SubjectID:      uuid.New(),
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         domain.BookingConfirmed,
		PaymentStatus:  domain.PaymentHeld,
		TotalPrice:     5000,
		Currency:       "USD",
		CommissionRate: decimal.RequireFromString("0.15"),
		CreatedAt:      start.Add(-24 * time.Hour),
		UpdatedAt:      start.Add(-24 * time.Hour),
	}
}

func row(b *domain.Booking) []any {
	return []any{
		b.ID, b.LearnerID, b.TeacherID, b.SubjectID, b.StartTime, b.EndTime, b.Status, b.PaymentStatus,
		b.TotalPrice, b.Currency, b.CommissionRate, b.CancellationReason, b.NoShowParty,
		b.DisputeRaisedAt, b.DisputeRaisedBy, b.DisputeReason, b.DisputeResolvedAt, b.DisputeResolution, b.DisputeOutcome,
		b.TeacherAttended, b.StudentAttended, b.ActualDurationMinutes, b.CreatedAt, b.UpdatedAt,
	}
}

func TestRepository_Create(t *testing.T) {
	repo, mock := NewMock(t)
	b := sampleBooking()

	tests := []struct {
		name      string
		execErr   error
		expectErr bool
	}{
		{name: "created"},
		{name: "database error", execErr: errors.New("database error"), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
				WithArgs(b.ID, b.LearnerID, b.TeacherID, b.SubjectID, b.StartTime, b.EndTime, b.Status, b.PaymentStatus,
					b.TotalPrice, b.Currency, b.CommissionRate, b.CreatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := repo.Create(context.Background(), b)

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Get(t *testing.T) {
	repo, mock := NewMock(t)
	b := sampleBooking()
	reason := "teacher ill"
	b.CancellationReason = &reason

	tests := []struct {
		name      string
		forUpdate bool
		mockSetup func(query string)
		expectErr bool
		result    *domain.Booking
	}{
		{
			name: "found",
			mockSetup: func(query string) {
				mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(b.ID).
					WillReturnRows(pgxmock.NewRows(bookingColumns).AddRow(row(b)...))
			},
			result: b,
		},
		{
			name:      "found and locked",
			forUpdate: true,
			mockSetup: func(query string) {
				mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(b.ID).
					WillReturnRows(pgxmock.NewRows(bookingColumns).AddRow(row(b)...))
			},
			result: b,
		},
		{
			name: "not found",
			mockSetup: func(query string) {
				mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(b.ID).WillReturnError(pgx.ErrNoRows)
			},
		},
		{
			name: "database error",
			mockSetup: func(query string) {
				mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs(b.ID).WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				result *domain.Booking
				err    error
			)
			if tt.forUpdate {
				tt.mockSetup(`FROM bookings WHERE id = $1 FOR UPDATE`)
				result, err = repo.GetForUpdate(context.Background(), b.ID)
			} else {
				tt.mockSetup(`FROM bookings WHERE id = $1`)
				result, err = repo.Get(context.Background(), b.ID)
			}

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Update(t *testing.T) {
	repo, mock := NewMock(t)
	b := sampleBooking()
	expected := b.State()
	b.Status = domain.BookingCancelled
	b.PaymentStatus = domain.PaymentRefunded

	tests := []struct {
		name        string
		mockSetup   func()
		expectedErr error
		expectErr   bool
	}{
		{
			name: "updated",
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings`)).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), domain.BookingCancelled, domain.PaymentRefunded,
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), b.ID, domain.BookingConfirmed, domain.PaymentHeld).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "state changed underneath",
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings`)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			expectedErr: domain.ErrStaleState,
			expectErr:   true,
		},
		{
			name: "database error",
			mockSetup: func() {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings`)).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			err := repo.Update(context.Background(), b, expected)

			if tt.expectErr {
				assert.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_FindNoShowCandidates(t *testing.T) {
	repo, mock := NewMock(t)
	cutoff := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	first, second := sampleBooking(), sampleBooking()
	second.TeacherAttended = true

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
		result    []domain.Booking
	}{
		{
			name: "candidates found",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`NOT (teacher_attended AND student_attended)`)).
					WithArgs(cutoff, 50).
					WillReturnRows(pgxmock.NewRows(bookingColumns).AddRow(row(first)...).AddRow(row(second)...))
			},
			result: []domain.Booking{*first, *second},
		},
		{
			name: "nothing overdue",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings`)).
					WithArgs(cutoff, 50).
					WillReturnRows(pgxmock.NewRows(bookingColumns))
			},
		},
		{
			name: "database error",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings`)).
					WithArgs(cutoff, 50).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			result, err := repo.FindNoShowCandidates(context.Background(), cutoff, 50)

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.result, result)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
