package ledgerrepo

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

func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `
        SELECT user_id, balance, currency, updated_at
        FROM wallets
        WHERE user_id = $1
    `
	var w domain.Wallet
	err := r.db.QueryRow(ctx, query, userID).Scan(&w.UserID, &w.Balance, &w.Currency, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to get wallet", zap.Error(err))
		return nil, err
	}
	return &w, nil
}

func (r *Repository) EnsureWallet(ctx context.Context, userID uuid.UUID, currency string) error {
	query := `
        INSERT INTO wallets (user_id, balance, currency)
        VALUES ($1, 0, $2)
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.db.Exec(ctx, query, userID, currency); err != nil {
		zap.L().Error("failed to ensure wallet", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) AddToBalance(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error) {
	query := `
        UPDATE wallets
        SET balance = balance + $1, updated_at = NOW()
        WHERE user_id = $2
        RETURNING user_id, balance, currency, updated_at
    `
	return r.updateBalance(ctx, query, amount, userID)
}

// SubtractFromBalance returns nil when the wallet is missing or holds less than amount;
// the balance is left untouched in that case.
func (r *Repository) SubtractFromBalance(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error) {
	query := `
        UPDATE wallets
        SET balance = balance - $1, updated_at = NOW()
        WHERE user_id = $2 AND balance >= $1
        RETURNING user_id, balance, currency, updated_at
    `
	return r.updateBalance(ctx, query, amount, userID)
}

func (r *Repository) updateBalance(ctx context.Context, query string, amount int64, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.QueryRow(ctx, query, amount, userID).Scan(&w.UserID, &w.Balance, &w.Currency, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("failed to update wallet balance", zap.Error(err))
		return nil, err
	}
	return &w, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
        INSERT INTO transactions (id, user_id, type, amount, currency, status, booking_id, payout_id, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.Exec(ctx, query, tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Currency, tx.Status, tx.BookingID, tx.PayoutID, tx.Description, tx.CreatedAt)
	if err != nil {
		zap.L().Error("can't save transaction", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) CreatePlatformEarning(ctx context.Context, e *domain.PlatformEarning) error {
	query := `
        INSERT INTO platform_earnings (id, booking_id, transaction_id, amount, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.db.Exec(ctx, query, e.ID, e.BookingID, e.TransactionID, e.Amount, e.Currency, e.CreatedAt)
	if err != nil {
		zap.L().Error("can't save platform earning", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `
        SELECT id, user_id, type, amount, currency, status, booking_id, payout_id, description, created_at
        FROM transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		zap.L().Error("failed to fetch transactions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Currency, &tx.Status, &tx.BookingID, &tx.PayoutID, &tx.Description, &tx.CreatedAt)
		if err != nil {
			zap.L().Error("failed to scan transaction row", zap.Error(err))
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SumCompleted totals the completed credits and debits recorded for a user.
func (r *Repository) SumCompleted(ctx context.Context, userID uuid.UUID) (credits, debits int64, err error) {
	query := `
        SELECT
            COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
            COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
        FROM transactions
        WHERE user_id = $1 AND status = 'completed'
    `
	err = r.db.QueryRow(ctx, query, userID).Scan(&credits, &debits)
	if err != nil {
		zap.L().Error("failed to sum transactions", zap.Error(err))
		return 0, 0, err
	}
	return credits, debits, nil
}
