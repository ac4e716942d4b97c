package ledgerservice

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/pg"
)

var errInjected = errors.New("injected storage failure")

// memRepo is an in-memory ledger whose memTX rolls back on error, so atomicity can be
// asserted without a database.
type memRepo struct {
	wallets  map[uuid.UUID]domain.Wallet
	txs      []domain.Transaction
	earnings []domain.PlatformEarning

	// failTxAt makes the n-th CreateTransaction call (1-based) fail.
	failTxAt int
	txCalls  int
}

func newMemRepo() *memRepo {
	return &memRepo{wallets: map[uuid.UUID]domain.Wallet{}}
}

type memState struct {
	wallets  map[uuid.UUID]domain.Wallet
	txs      []domain.Transaction
	earnings []domain.PlatformEarning
}

func (m *memRepo) snapshot() memState {
	return memState{wallets: maps.Clone(m.wallets), txs: slices.Clone(m.txs), earnings: slices.Clone(m.earnings)}
}

func (m *memRepo) restore(s memState) {
	m.wallets, m.txs, m.earnings = s.wallets, s.txs, s.earnings
}

func (m *memRepo) GetWallet(_ context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *memRepo) EnsureWallet(_ context.Context, userID uuid.UUID, currency string) error {
	if _, ok := m.wallets[userID]; !ok {
		m.wallets[userID] = domain.Wallet{UserID: userID, Currency: currency}
	}
	return nil
}

func (m *memRepo) AddToBalance(_ context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, nil
	}
	w.Balance += amount
	m.wallets[userID] = w
	return &w, nil
}

func (m *memRepo) SubtractFromBalance(_ context.Context, userID uuid.UUID, amount int64) (*domain.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok || w.Balance < amount {
		return nil, nil
	}
	w.Balance -= amount
	m.wallets[userID] = w
	return &w, nil
}

func (m *memRepo) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	m.txCalls++
	if m.failTxAt > 0 && m.txCalls == m.failTxAt {
		return errInjected
	}
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memRepo) CreatePlatformEarning(_ context.Context, e *domain.PlatformEarning) error {
	m.earnings = append(m.earnings, *e)
	return nil
}

func (m *memRepo) ListTransactions(_ context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID && len(out) < limit {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memRepo) SumCompleted(_ context.Context, userID uuid.UUID) (int64, int64, error) {
	var credits, debits int64
	for _, tx := range m.txs {
		if tx.UserID != userID || tx.Status != domain.TransactionCompleted {
			continue
		}
		if tx.Type == domain.TransactionCredit {
			credits += tx.Amount
		} else {
			debits += tx.Amount
		}
	}
	return credits, debits, nil
}

type memTX struct {
	repo  *memRepo
	depth int
}

func (t *memTX) Begin(ctx context.Context, fn pg.TransactionalFn) error {
	if t.depth > 0 {
		return fn(ctx)
	}
	snap := t.repo.snapshot()
	t.depth++
	err := fn(ctx)
	t.depth--
	if err != nil {
		t.repo.restore(snap)
	}
	return err
}
