// Package payoutservice moves accumulated teacher earnings out of the ledger through
// request, approval and processing steps.
package payoutservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/notify"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	"github.com/GlebRadaev/tutorpay/internal/service/txretry"
)

type Repo interface {
	Create(ctx context.Context, p *domain.Payout) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Update(ctx context.Context, p *domain.Payout, expected domain.PayoutStatus) error
	List(ctx context.Context, f domain.PayoutFilter) ([]domain.Payout, error)
}

type Ledger interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64, currency, reason string, link domain.Link) (*domain.Transaction, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, currency, reason string, link domain.Link) (*domain.Transaction, error)
}

type Gateway interface {
	Send(ctx context.Context, in domain.PayoutInstruction) (*domain.GatewayReceipt, error)
}

type Service struct {
	repo      Repo
	ledger    Ledger
	gateway   Gateway
	txManager pg.TXManager
	publisher notify.Publisher
	now       func() time.Time
}

func New(repo Repo, ledger Ledger, gateway Gateway, txManager pg.TXManager, publisher notify.Publisher) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		gateway:   gateway,
		txManager: txManager,
		publisher: publisher,
		now:       time.Now,
	}
}

// Request records a withdrawal in the wallet's currency. The balance is checked here but only
// debited on approval, so pending requests never lock funds.
func (s *Service) Request(ctx context.Context, teacherID uuid.UUID, amount int64, destination string) (*domain.Payout, error) {
	const op = "request_payout"
	if amount <= 0 {
		return nil, domain.Precondition(op, domain.ErrInvalidAmount, "amount %d must be positive", amount)
	}
	if destination == "" {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "destination is required")
	}

	wallet, err := s.ledger.GetWallet(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, domain.Precondition(op, domain.ErrInsufficientFunds, "requested %d, balance %d", amount, wallet.Balance)
	}

	p := &domain.Payout{
		ID:          uuid.New(),
		TeacherID:   teacherID,
		Amount:      amount,
		Currency:    wallet.Currency,
		Destination: destination,
		Status:      domain.PayoutPending,
		RequestedAt: s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, domain.NewPayoutEvent(domain.EventPayoutRequested, p, p.RequestedAt))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payout %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, f domain.PayoutFilter) ([]domain.Payout, error) {
	return s.repo.List(ctx, f)
}

// Approve debits the teacher's wallet and marks the payout approved in one transaction. An
// approval that cannot be debited leaves the payout pending.
func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID) (*domain.Payout, error) {
	return s.transition(ctx, id, domain.OpApprovePayout, &approverID, func(ctx context.Context, p *domain.Payout) (domain.EventType, error) {
		if _, err := s.ledger.Debit(ctx, p.TeacherID, p.Amount, p.Currency, "payout", domain.PayoutLink(p.ID)); err != nil {
			return "", err
		}
		now := s.now()
		p.Status = domain.PayoutApproved
		p.ApprovedBy = &approverID
		p.ApprovedAt = &now
		return domain.EventPayoutApproved, nil
	})
}

// Reject closes a payout that has not been sent. An approved payout is credited back in the
// same transaction as the status change.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, approverID uuid.UUID) (*domain.Payout, error) {
	return s.transition(ctx, id, domain.OpRejectPayout, &approverID, func(ctx context.Context, p *domain.Payout) (domain.EventType, error) {
		if p.Status == domain.PayoutApproved {
			if _, err := s.ledger.Credit(ctx, p.TeacherID, p.Amount, p.Currency, "payout reversal", domain.PayoutLink(p.ID)); err != nil {
				return "", err
			}
		}
		p.Status = domain.PayoutRejected
		p.RejectionReason = &reason
		return domain.EventPayoutRejected, nil
	})
}

// Reverse settles a failed send by crediting the amount back to the teacher's wallet. The
// credit and the move to rejected commit together.
func (s *Service) Reverse(ctx context.Context, id uuid.UUID, reason string, approverID uuid.UUID) (*domain.Payout, error) {
	return s.transition(ctx, id, domain.OpReversePayout, &approverID, func(ctx context.Context, p *domain.Payout) (domain.EventType, error) {
		if _, err := s.ledger.Credit(ctx, p.TeacherID, p.Amount, p.Currency, "payout reversal", domain.PayoutLink(p.ID)); err != nil {
			return "", err
		}
		p.Status = domain.PayoutRejected
		p.RejectionReason = &reason
		return domain.EventPayoutRejected, nil
	})
}

// Confirm settles a failed send that the gateway did deliver. The wallet stays debited.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, gatewayRef string, approverID uuid.UUID) (*domain.Payout, error) {
	if gatewayRef == "" {
		return nil, domain.Precondition(string(domain.OpConfirmPayout), domain.ErrInvalidArgument, "gateway reference is required")
	}
	return s.transition(ctx, id, domain.OpConfirmPayout, &approverID, func(_ context.Context, p *domain.Payout) (domain.EventType, error) {
		now := s.now()
		p.Status = domain.PayoutCompleted
		p.GatewayRef = &gatewayRef
		p.FailureReason = nil
		p.ProcessedAt = &now
		return domain.EventPayoutProcessed, nil
	})
}

// Process sends an approved payout to the gateway. The processing status is committed before
// the call and the outcome after it, so no database lock is held while the gateway works. A
// failed or unanswered call ends in processing_failed and is never credited back here.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.transition(ctx, id, domain.OpProcessPayout, nil, func(_ context.Context, p *domain.Payout) (domain.EventType, error) {
		p.Status = domain.PayoutProcessing
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	receipt, sendErr := s.gateway.Send(ctx, domain.PayoutInstruction{
		PayoutID:    p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Destination: p.Destination,
	})
	if sendErr == nil && receipt == nil {
		sendErr = errors.New("gateway returned no receipt")
	}

	// The outcome must be recorded even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	var event domain.Event
	err = txretry.Do(ctx, s.txManager, func(ctx context.Context) error {
		cur, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		p = cur
		if p.Status != domain.PayoutProcessing {
			return domain.Precondition(string(domain.OpProcessPayout), domain.ErrInvalidStatus, "payout status %q changed during processing", p.Status)
		}
		now := s.now()
		p.ProcessedAt = &now
		switch {
		case sendErr != nil:
			reason := sendErr.Error()
			p.Status = domain.PayoutProcessingFailed
			p.FailureReason = &reason
		case !receipt.Succeeded:
			reason := receipt.Reason
			p.Status = domain.PayoutProcessingFailed
			p.FailureReason = &reason
			p.GatewayRef = nonEmpty(receipt.Reference)
		default:
			p.Status = domain.PayoutCompleted
			p.GatewayRef = nonEmpty(receipt.Reference)
		}
		if err := s.repo.Update(ctx, p, domain.PayoutProcessing); err != nil {
			return err
		}
		event = domain.NewPayoutEvent(domain.EventPayoutProcessed, p, now)
		event.Succeeded = p.Status == domain.PayoutCompleted
		if p.FailureReason != nil {
			event.Reason = *p.FailureReason
		}
		return nil
	})
	if err != nil {
		zap.L().Error("payout sent but outcome not recorded, reconcile manually",
			zap.String("payout_id", id.String()), zap.NamedError("send_error", sendErr), zap.Error(err))
		return nil, err
	}

	if p.Status == domain.PayoutProcessingFailed {
		zap.L().Warn("payout processing failed", zap.String("payout_id", id.String()), zap.String("reason", *p.FailureReason))
	}
	s.publisher.Publish(ctx, event)
	return p, nil
}

type BulkFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

type BulkResult struct {
	Approved []uuid.UUID  `json:"approved"`
	Failed   []BulkFailure `json:"failed"`
}

// BulkApprove approves each payout on its own. A failure is reported against its id and does
// not stop the rest of the batch.
func (s *Service) BulkApprove(ctx context.Context, ids []uuid.UUID, approverID uuid.UUID) BulkResult {
	res := BulkResult{Approved: []uuid.UUID{}, Failed: []BulkFailure{}}
	for _, id := range ids {
		if _, err := s.Approve(ctx, id, approverID); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: err.Error()})
			continue
		}
		res.Approved = append(res.Approved, id)
	}
	zap.L().Info("bulk payout approval", zap.Int("approved", len(res.Approved)), zap.Int("failed", len(res.Failed)))
	return res
}

type change func(ctx context.Context, p *domain.Payout) (domain.EventType, error)

// transition locks the payout, checks op against its status, applies fn and persists the result
// conditionally on the prior status. A non-empty event type is published after commit with
// actor attached.
func (s *Service) transition(ctx context.Context, id uuid.UUID, op domain.Operation, actor *uuid.UUID, fn change) (*domain.Payout, error) {
	var (
		payout *domain.Payout
		event  domain.EventType
	)
	err := txretry.Do(ctx, s.txManager, func(ctx context.Context) error {
		p, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckPayoutTransition(op, p.Status); err != nil {
			return err
		}
		expected := p.Status
		if event, err = fn(ctx, p); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p, expected); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		fields := []zap.Field{zap.String("op", string(op)), zap.String("payout_id", id.String()), zap.Error(err)}
		if domain.IsPrecondition(err) || errors.Is(err, domain.ErrStaleState) {
			zap.L().Warn("payout transition rejected", fields...)
		} else {
			zap.L().Error("payout transition failed", fields...)
		}
		return nil, err
	}

	if event != "" {
		e := domain.NewPayoutEvent(event, payout, s.now())
		if payout.RejectionReason != nil {
			e.Reason = *payout.RejectionReason
		}
		e.ActorID = actor
		e.Succeeded = payout.Status == domain.PayoutCompleted
		s.publisher.Publish(ctx, e)
	}
	return payout, nil
}

func (s *Service) lock(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	p, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.Precondition("payout", domain.ErrNotFound, "payout %s", id)
	}
	return p, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
