package bookingrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

const columns = `id, learner_id, teacher_id, subject_id, start_time, end_time, status, payment_status,
        total_price, currency, commission_rate, cancellation_reason, no_show_party,
        dispute_raised_at, dispute_raised_by, dispute_reason, dispute_resolved_at, dispute_resolution, dispute_outcome,
        teacher_attended, student_attended, actual_duration_minutes, created_at, updated_at`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func scan(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.LearnerID, &b.TeacherID, &b.SubjectID, &b.StartTime, &b.EndTime, &b.Status, &b.PaymentStatus,
		&b.TotalPrice, &b.Currency, &b.CommissionRate, &b.CancellationReason, &b.NoShowParty,
		&b.DisputeRaisedAt, &b.DisputeRaisedBy, &b.DisputeReason, &b.DisputeResolvedAt, &b.DisputeResolution, &b.DisputeOutcome,
		&b.TeacherAttended, &b.StudentAttended, &b.ActualDurationMinutes, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
        INSERT INTO bookings (id, learner_id, teacher_id, subject_id, start_time, end_time, status, payment_status,
            total_price, currency, commission_rate, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
    `
	_, err := r.db.Exec(ctx, query, b.ID, b.LearnerID, b.TeacherID, b.SubjectID, b.StartTime, b.EndTime, b.Status, b.PaymentStatus,
		b.TotalPrice, b.Currency, b.CommissionRate, b.CreatedAt)
	if err != nil {
		zap.L().Error("can't save booking", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+columns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate locks the booking row until the surrounding transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.get(ctx, `SELECT `+columns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Booking, error) {
	b, err := scan(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't get booking", zap.Error(err))
		return nil, err
	}
	return b, nil
}

// Update writes every mutable field, but only if the row is still in the expected state.
// The commission rate is never written after creation.
func (r *Repository) Update(ctx context.Context, b *domain.Booking, expected domain.State) error {
	query := `
        UPDATE bookings
        SET teacher_id = $1, start_time = $2, end_time = $3, status = $4, payment_status = $5,
            cancellation_reason = $6, no_show_party = $7,
            dispute_raised_at = $8, dispute_raised_by = $9, dispute_reason = $10,
            dispute_resolved_at = $11, dispute_resolution = $12, dispute_outcome = $13,
            teacher_attended = $14, student_attended = $15, actual_duration_minutes = $16, updated_at = $17
        WHERE id = $18 AND status = $19 AND payment_status = $20
    `
	tag, err := r.db.Exec(ctx, query,
		b.TeacherID, b.StartTime, b.EndTime, b.Status, b.PaymentStatus,
		b.CancellationReason, b.NoShowParty,
		b.DisputeRaisedAt, b.DisputeRaisedBy, b.DisputeReason,
		b.DisputeResolvedAt, b.DisputeResolution, b.DisputeOutcome,
		b.TeacherAttended, b.StudentAttended, b.ActualDurationMinutes, b.UpdatedAt,
		b.ID, expected.Status, expected.Payment,
	)
	if err != nil {
		zap.L().Error("failed to update booking", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}

// FindNoShowCandidates returns held, confirmed bookings that started before the cutoff
// without both parties having joined.
func (r *Repository) FindNoShowCandidates(ctx context.Context, startedBefore time.Time, limit uint32) ([]domain.Booking, error) {
	query := `SELECT ` + columns + `
        FROM bookings
        WHERE status = 'confirmed' AND payment_status = 'held'
            AND start_time <= $1
            AND NOT (teacher_attended AND student_attended)
        ORDER BY start_time ASC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, startedBefore, int(limit))
	if err != nil {
		zap.L().Error("can't get no-show candidates", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			zap.L().Error("can't scan booking row", zap.Error(err))
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
