package reschedulerepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, req *domain.RescheduleRequest) error {
	query := `
        INSERT INTO reschedule_requests (id, booking_id, requested_by, original_start, original_end, new_start, new_end, reason, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.Exec(ctx, query, req.ID, req.BookingID, req.RequestedBy, req.OriginalStart, req.OriginalEnd,
		req.NewStart, req.NewEnd, req.Reason, req.Status, req.CreatedAt)
	if err != nil {
		zap.L().Error("can't save reschedule request", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.RescheduleRequest, error) {
	query := `
        SELECT id, booking_id, requested_by, original_start, original_end, new_start, new_end, reason, status, created_at, decided_at
        FROM reschedule_requests
        WHERE id = $1
    `
	var req domain.RescheduleRequest
	err := r.db.QueryRow(ctx, query, id).Scan(&req.ID, &req.BookingID, &req.RequestedBy, &req.OriginalStart, &req.OriginalEnd,
		&req.NewStart, &req.NewEnd, &req.Reason, &req.Status, &req.CreatedAt, &req.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't get reschedule request", zap.Error(err))
		return nil, err
	}
	return &req, nil
}

func (r *Repository) Decide(ctx context.Context, req *domain.RescheduleRequest) error {
	query := `
        UPDATE reschedule_requests
        SET status = $1, decided_at = $2
        WHERE id = $3 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, req.Status, req.DecidedAt, req.ID)
	if err != nil {
		zap.L().Error("failed to update reschedule request", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}
