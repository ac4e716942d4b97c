// Package disputeservice resolves disputed bookings into a release, a refund or a partial split.
package disputeservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/service/bookingservice"
	"github.com/GlebRadaev/tutorpay/internal/service/policy"
)

const op = string(domain.OpResolveDispute)

type Machine interface {
	Apply(ctx context.Context, id uuid.UUID, op domain.Operation, fn bookingservice.Mutation) (*domain.Booking, error)
}

type Ledger interface {
	Settle(ctx context.Context, b *domain.Booking, split domain.Split, reason string) error
}

type Resolution struct {
	Outcome domain.DisputeOutcome
	// TeacherPercentage is the share of the price attributed to the teacher side, read only
	// for partial outcomes.
	TeacherPercentage int
	Note              string
	ResolverID        uuid.UUID
}

type Service struct {
	machine Machine
	ledger  Ledger
	policy  *policy.Policy
	now     func() time.Time
}

func New(machine Machine, ledger Ledger, policy *policy.Policy) *Service {
	return &Service{
		machine: machine,
		ledger:  ledger,
		policy:  policy,
		now:     time.Now,
	}
}

// Resolve closes the open dispute on a booking exactly once. The settlement and the
// resolution fields are written in the same transaction; a released dispute completes the
// booking, any other outcome cancels it.
func (s *Service) Resolve(ctx context.Context, bookingID uuid.UUID, r Resolution) (*domain.Booking, error) {
	if !r.Outcome.Valid() {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "unknown outcome %q", r.Outcome)
	}
	if r.Outcome == domain.OutcomePartial && (r.TeacherPercentage < 0 || r.TeacherPercentage > 100) {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "teacher percentage %d outside [0,100]", r.TeacherPercentage)
	}

	b, err := s.machine.Apply(ctx, bookingID, domain.OpResolveDispute, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		if b.DisputeResolvedAt != nil {
			return nil, domain.Precondition(op, domain.ErrDisputeNotOpen, "dispute already resolved")
		}
		split, err := s.policy.Dispute(b.TotalPrice, b.CommissionRate, r.Outcome, r.TeacherPercentage)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Settle(ctx, b, split, "dispute "+string(r.Outcome)); err != nil {
			return nil, err
		}

		now := s.now()
		outcome := r.Outcome
		note := r.Note
		b.DisputeResolvedAt = &now
		b.DisputeOutcome = &outcome
		b.DisputeResolution = &note
		b.PaymentStatus = bookingservice.SettledStatus(split)
		b.Status = domain.BookingCancelled
		if outcome == domain.OutcomeReleased {
			b.Status = domain.BookingCompleted
		}

		e := domain.NewBookingEvent(domain.EventDisputeResolved, b, now)
		e.Outcome = outcome
		e.Split = &split
		e.Reason = note
		e.ActorID = &r.ResolverID
		return []domain.Event{e}, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return nil, domain.Precondition(op, domain.ErrDisputeNotOpen, "booking %s has no open dispute", bookingID)
		}
		return nil, err
	}

	zap.L().Info("dispute resolved",
		zap.String("booking_id", bookingID.String()),
		zap.String("outcome", string(r.Outcome)),
		zap.String("resolver_id", r.ResolverID.String()),
	)
	return b, nil
}
