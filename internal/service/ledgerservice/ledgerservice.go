package ledgerservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

type Repo interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	EnsureWallet(ctx context.Context, userID uuid.UUID, currency string) error
	AddToBalance(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error)
	SubtractFromBalance(ctx context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	CreatePlatformEarning(ctx context.Context, e *domain.PlatformEarning) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	SumCompleted(ctx context.Context, userID uuid.UUID) (credits, debits int64, err error)
}

type Service struct {
	repo      Repo
	txManager pg.TXManager
	now       func() time.Time
}

func New(repo Repo, txManager pg.TXManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		now:       time.Now,
	}
}

// Credit adds amount to the user's wallet, creating it on first use, and records one
// completed credit transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, currency, reason string, link domain.Link) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.Precondition("credit", domain.ErrInvalidAmount, "amount %d must be positive", amount)
	}

	var tx *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		if err := s.repo.EnsureWallet(ctx, userID, currency); err != nil {
			return err
		}
		wallet, err := s.repo.AddToBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if wallet == nil {
			return domain.ErrNotFound
		}
		if wallet.Currency != currency {
			return domain.Precondition("credit", domain.ErrCurrencyMismatch, "wallet holds %s, credit is %s", wallet.Currency, currency)
		}
		tx = s.newTransaction(userID, domain.TransactionCredit, amount, currency, reason, link)
		return s.repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		zap.L().Error("failed to credit wallet", zap.String("user_id", userID.String()), zap.Int64("amount", amount), zap.Error(err))
		return nil, err
	}
	return tx, nil
}

// Debit removes amount from the user's wallet. It fails with ErrInsufficientFunds, changing
// nothing, when the balance would go negative.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, currency, reason string, link domain.Link) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.Precondition("debit", domain.ErrInvalidAmount, "amount %d must be positive", amount)
	}

	var tx *domain.Transaction
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		wallet, err := s.repo.SubtractFromBalance(ctx, userID, amount)
		if err != nil {
			return err
		}
		if wallet == nil {
			return domain.Precondition("debit", domain.ErrInsufficientFunds, "wallet of %s holds less than %d", userID, amount)
		}
		if wallet.Currency != currency {
			return domain.Precondition("debit", domain.ErrCurrencyMismatch, "wallet holds %s, debit is %s", wallet.Currency, currency)
		}
		tx = s.newTransaction(userID, domain.TransactionDebit, amount, currency, reason, link)
		return s.repo.CreateTransaction(ctx, tx)
	})
	if err != nil {
		zap.L().Warn("failed to debit wallet", zap.String("user_id", userID.String()), zap.Int64("amount", amount), zap.Error(err))
		return nil, err
	}
	return tx, nil
}

// Transfer moves amount between wallets; both legs commit or neither does.
func (s *Service) Transfer(ctx context.Context, from, to uuid.UUID, amount int64, currency, reason string) error {
	if from == to {
		return domain.Precondition("transfer", domain.ErrInvalidArgument, "source and destination are the same wallet")
	}
	return s.txManager.Begin(ctx, func(ctx context.Context) error {
		if _, err := s.Debit(ctx, from, amount, currency, reason, domain.Link{}); err != nil {
			return err
		}
		_, err := s.Credit(ctx, to, amount, currency, reason, domain.Link{})
		return err
	})
}

// Settle moves a booking's held funds to their destinations: the refund to the learner,
// earnings to the teacher and the commission into a PlatformEarning tied to the teacher credit.
// It must run inside the caller's transaction together with the booking status write.
func (s *Service) Settle(ctx context.Context, b *domain.Booking, split domain.Split, reason string) error {
	if split.Total() != b.TotalPrice {
		return domain.Precondition("settle", domain.ErrInvalidAmount, "split %d does not match price %d", split.Total(), b.TotalPrice)
	}
	link := domain.BookingLink(b.ID)

	return s.txManager.Begin(ctx, func(ctx context.Context) error {
		if split.Refund > 0 {
			if _, err := s.Credit(ctx, b.LearnerID, split.Refund, b.Currency, "refund: "+reason, link); err != nil {
				return err
			}
		}

		var teacherTxID *uuid.UUID
		if split.TeacherEarnings > 0 {
			tx, err := s.Credit(ctx, b.TeacherID, split.TeacherEarnings, b.Currency, "earnings: "+reason, link)
			if err != nil {
				return err
			}
			teacherTxID = &tx.ID
		}

		if split.PlatformCommission > 0 {
			earning := &domain.PlatformEarning{
				ID:            uuid.New(),
				BookingID:     b.ID,
				TransactionID: teacherTxID,
				Amount:        split.PlatformCommission,
				Currency:      b.Currency,
				CreatedAt:     s.now(),
			}
			if err := s.repo.CreatePlatformEarning(ctx, earning); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get wallet", zap.Error(err))
		return nil, err
	}
	if wallet == nil {
		return &domain.Wallet{UserID: userID}, nil
	}
	return wallet, nil
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		zap.L().Error("failed to fetch transactions", zap.Error(err))
		return nil, err
	}
	return txs, nil
}

type Reconciliation struct {
	UserID   uuid.UUID `json:"user_id"`
	Balance  int64     `json:"balance"`
	Credits  int64     `json:"credits"`
	Debits   int64     `json:"debits"`
	Balanced bool      `json:"balanced"`
}

// Reconcile compares the wallet balance with the sum of completed transactions.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		balance, err := s.Balance(ctx, userID)
		if err != nil {
			return err
		}
		credits, debits, err := s.repo.SumCompleted(ctx, userID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			UserID:   userID,
			Balance:  balance,
			Credits:  credits,
			Debits:   debits,
			Balanced: balance == credits-debits,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Balanced {
		zap.L().Error("wallet out of balance with ledger",
			zap.String("user_id", userID.String()),
			zap.Int64("balance", rec.Balance),
			zap.Int64("ledger", rec.Credits-rec.Debits),
		)
	}
	return rec, nil
}

func (s *Service) newTransaction(userID uuid.UUID, typ domain.TransactionType, amount int64, currency, reason string, link domain.Link) *domain.Transaction {
	return &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Currency:    currency,
		Status:      domain.TransactionCompleted,
		BookingID:   link.BookingID,
		PayoutID:    link.PayoutID,
		Description: reason,
		CreatedAt:   s.now(),
	}
}
