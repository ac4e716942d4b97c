package payoutrepo

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

const columns = `id, teacher_id, amount, currency, destination, status, requested_at,
        approved_by, approved_at, rejection_reason, processed_at, gateway_ref, failure_reason`

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

func scan(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.TeacherID, &p.Amount, &p.Currency, &p.Destination, &p.Status, &p.RequestedAt,
		&p.ApprovedBy, &p.ApprovedAt, &p.RejectionReason, &p.ProcessedAt, &p.GatewayRef, &p.FailureReason)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *domain.Payout) error {
	query := `
        INSERT INTO payouts (id, teacher_id, amount, currency, destination, status, requested_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.Exec(ctx, query, p.ID, p.TeacherID, p.Amount, p.Currency, p.Destination, p.Status, p.RequestedAt)
	if err != nil {
		zap.L().Error("can't save payout", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	return r.get(ctx, `SELECT `+columns+` FROM payouts WHERE id = $1`, id)
}

func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	return r.get(ctx, `SELECT `+columns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) get(ctx context.Context, query string, id uuid.UUID) (*domain.Payout, error) {
	p, err := scan(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("can't get payout", zap.Error(err))
		return nil, err
	}
	return p, nil
}

// Update persists the payout if it is still in the expected status.
func (r *Repository) Update(ctx context.Context, p *domain.Payout, expected domain.PayoutStatus) error {
	query := `
        UPDATE payouts
        SET status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4,
            processed_at = $5, gateway_ref = $6, failure_reason = $7
        WHERE id = $8 AND status = $9
    `
	tag, err := r.db.Exec(ctx, query, p.Status, p.ApprovedBy, p.ApprovedAt, p.RejectionReason,
		p.ProcessedAt, p.GatewayRef, p.FailureReason, p.ID, expected)
	if err != nil {
		zap.L().Error("failed to update payout", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}

const defaultListLimit = 100

func (r *Repository) List(ctx context.Context, f domain.PayoutFilter) ([]domain.Payout, error) {
	var (
		where []string
		args  []any
	)
	if f.TeacherID != nil {
		args = append(args, *f.TeacherID)
		where = append(where, "teacher_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + columns + ` FROM payouts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	args = append(args, f.Limit)
	query += ` ORDER BY requested_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("failed to fetch payouts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			zap.L().Error("failed to scan payout row", zap.Error(err))
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}
