// Package bookingservice is the booking state machine. Every operation locks the booking row,
// checks the transition against the current status and payment status, applies the change
// together with any ledger settlement in one transaction, and publishes the resulting events
// only after that transaction has committed.
package bookingservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/notify"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	"github.com/GlebRadaev/tutorpay/internal/service/policy"
	"github.com/GlebRadaev/tutorpay/internal/service/txretry"
)

type Repo interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Update(ctx context.Context, b *domain.Booking, expected domain.State) error
}

type RescheduleRepo interface {
	Create(ctx context.Context, req *domain.RescheduleRequest) error
	Get(ctx context.Context, id uuid.UUID) (*domain.RescheduleRequest, error)
	Decide(ctx context.Context, req *domain.RescheduleRequest) error
}

type SubjectRepo interface {
	Teaches(ctx context.Context, teacherID, subjectID uuid.UUID) (bool, error)
}

type Ledger interface {
	Settle(ctx context.Context, b *domain.Booking, split domain.Split, reason string) error
}

// Mutation changes a locked booking in place and returns the events to publish once the
// change is committed. It runs inside the booking's transaction.
type Mutation func(ctx context.Context, b *domain.Booking) ([]domain.Event, error)

type Deps struct {
	Repo        Repo
	Reschedules RescheduleRepo
	Subjects    SubjectRepo
	Ledger      Ledger
	Policy      *policy.Policy
	TxManager   pg.TXManager
	Publisher   notify.Publisher
}

type Service struct {
	repo           Repo
	reschedules    RescheduleRepo
	subjects       SubjectRepo
	ledger         Ledger
	policy         *policy.Policy
	txManager      pg.TXManager
	publisher      notify.Publisher
	commissionRate decimal.Decimal
	now            func() time.Time
}

func New(deps Deps, commissionRate decimal.Decimal) *Service {
	return &Service{
		repo:           deps.Repo,
		reschedules:    deps.Reschedules,
		subjects:       deps.Subjects,
		ledger:         deps.Ledger,
		policy:         deps.Policy,
		txManager:      deps.TxManager,
		publisher:      deps.Publisher,
		commissionRate: commissionRate,
		now:            time.Now,
	}
}

type CreateInput struct {
	LearnerID   uuid.UUID
	TeacherID   uuid.UUID
	SubjectID   uuid.UUID
	Start       time.Time
	End         time.Time
	TotalPrice  int64
	Currency    string
	PaymentHeld bool
}

// Create reserves a session. The platform commission rate in force now is copied onto the
// booking and used for every later settlement of it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Booking, error) {
	const op = "create_booking"
	if in.TotalPrice <= 0 {
		return nil, domain.Precondition(op, domain.ErrInvalidAmount, "total price %d must be positive", in.TotalPrice)
	}
	if in.Currency == "" {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "currency is required")
	}
	if in.LearnerID == in.TeacherID {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "learner and teacher must differ")
	}
	now := s.now()
	if err := checkSchedule(op, in.Start, in.End, now); err != nil {
		return nil, err
	}
	if err := s.checkTeaches(ctx, op, in.TeacherID, in.SubjectID); err != nil {
		return nil, err
	}

	b := &domain.Booking{
		ID:             uuid.New(),
		LearnerID:      in.LearnerID,
		TeacherID:      in.TeacherID,
		SubjectID:      in.SubjectID,
		StartTime:      in.Start,
		EndTime:        in.End,
		Status:         domain.BookingPending,
		PaymentStatus:  domain.PaymentPending,
		TotalPrice:     in.TotalPrice,
		Currency:       in.Currency,
		CommissionRate: s.commissionRate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.PaymentHeld {
		b.Status = domain.BookingAwaitingApproval
		b.PaymentStatus = domain.PaymentHeld
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	zap.L().Info("booking created", zap.String("booking_id", b.ID.String()), zap.String("status", b.State().String()))
	return b, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

// ConfirmPayment records that the learner's payment cleared and is now held in escrow.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.Apply(ctx, id, domain.OpConfirmPayment, func(_ context.Context, b *domain.Booking) ([]domain.Event, error) {
		b.PaymentStatus = domain.PaymentHeld
		if b.Status == domain.BookingPending {
			b.Status = domain.BookingAwaitingApproval
		}
		return []domain.Event{s.event(domain.EventPaymentHeld, b)}, nil
	})
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.Apply(ctx, id, domain.OpApprove, func(_ context.Context, b *domain.Booking) ([]domain.Event, error) {
		b.Status = domain.BookingConfirmed
		return []domain.Event{s.event(domain.EventBookingApproved, b)}, nil
	})
}

// Cancel ends the booking. Held funds go back to the learner in the same transaction.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*domain.Booking, error) {
	return s.Apply(ctx, id, domain.OpCancel, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		e := s.event(domain.EventBookingCancelled, b)
		e.Reason = reason
		e.ActorID = &actor

		if b.PaymentStatus == domain.PaymentHeld {
			split, err := s.policy.Cancellation(b.TotalPrice)
			if err != nil {
				return nil, err
			}
			if err := s.ledger.Settle(ctx, b, split, "booking cancelled"); err != nil {
				return nil, err
			}
			b.PaymentStatus = domain.PaymentRefunded
			e.Split = &split
		}
		b.Status = domain.BookingCancelled
		b.CancellationReason = &reason
		return []domain.Event{e}, nil
	})
}

func (s *Service) ReassignTeacher(ctx context.Context, id, teacherID uuid.UUID, reason string) (*domain.Booking, error) {
	return s.Apply(ctx, id, domain.OpReassignTeacher, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		if b.TeacherID == teacherID {
			return nil, domain.Precondition(string(domain.OpReassignTeacher), domain.ErrInvalidArgument, "teacher %s is already assigned", teacherID)
		}
		if teacherID == b.LearnerID {
			return nil, domain.Precondition(string(domain.OpReassignTeacher), domain.ErrInvalidArgument, "learner cannot teach own booking")
		}
		if err := s.checkTeaches(ctx, string(domain.OpReassignTeacher), teacherID, b.SubjectID); err != nil {
			return nil, err
		}
		previous := b.TeacherID
		b.TeacherID = teacherID

		e := s.event(domain.EventTeacherReassigned, b)
		e.Reason = reason
		e.Recipients = append(e.Recipients, previous)
		return []domain.Event{e}, nil
	})
}

// Reschedule moves the session directly, without a request round trip.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time, reason string) (*domain.Booking, error) {
	if err := checkSchedule(string(domain.OpReschedule), start, end, s.now()); err != nil {
		return nil, err
	}
	return s.Apply(ctx, id, domain.OpReschedule, func(_ context.Context, b *domain.Booking) ([]domain.Event, error) {
		b.StartTime, b.EndTime = start, end
		b.Status = domain.BookingConfirmed

		e := s.event(domain.EventBookingRescheduled, b)
		e.Reason = reason
		return []domain.Event{e}, nil
	})
}

// RequestReschedule proposes a new time window on behalf of one participant and parks the
// booking in rescheduling until the proposal is answered.
func (s *Service) RequestReschedule(ctx context.Context, id, requestedBy uuid.UUID, start, end time.Time, reason string) (*domain.RescheduleRequest, error) {
	op := string(domain.OpRequestReschedule)
	now := s.now()
	if err := checkSchedule(op, start, end, now); err != nil {
		return nil, err
	}

	var req *domain.RescheduleRequest
	_, err := s.Apply(ctx, id, domain.OpRequestReschedule, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		if !slices.Contains(b.Participants(), requestedBy) {
			return nil, domain.Precondition(op, domain.ErrInvalidArgument, "%s is not a participant", requestedBy)
		}
		req = &domain.RescheduleRequest{
			ID:            uuid.New(),
			BookingID:     b.ID,
			RequestedBy:   requestedBy,
			OriginalStart: b.StartTime,
			OriginalEnd:   b.EndTime,
			NewStart:      start,
			NewEnd:        end,
			Reason:        reason,
			Status:        domain.ReschedulePending,
			CreatedAt:     now,
		}
		if err := s.reschedules.Create(ctx, req); err != nil {
			return nil, err
		}
		b.Status = domain.BookingRescheduling

		e := s.event(domain.EventRescheduleRequest, b)
		e.Reason = reason
		e.ActorID = &requestedBy
		return []domain.Event{e}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RespondReschedule answers a pending proposal on behalf of respondedBy, who must not be the
// participant that made it. Either way the booking returns to confirmed; only an approval
// moves its time window.
func (s *Service) RespondReschedule(ctx context.Context, id, requestID, respondedBy uuid.UUID, approve bool) (*domain.Booking, error) {
	op := string(domain.OpRespondReschedule)
	return s.Apply(ctx, id, domain.OpRespondReschedule, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		req, err := s.reschedules.Get(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if req == nil || req.BookingID != b.ID {
			return nil, domain.Precondition(op, domain.ErrNotFound, "reschedule request %s for booking %s", requestID, b.ID)
		}
		if req.Status != domain.ReschedulePending {
			return nil, domain.Precondition(op, domain.ErrInvalidStatus, "reschedule request is already %s", req.Status)
		}
		if req.RequestedBy == respondedBy {
			return nil, domain.Precondition(op, domain.ErrForbidden, "%s cannot answer their own request", respondedBy)
		}

		now := s.now()
		req.DecidedAt = &now
		e := s.event(domain.EventRescheduleDeclined, b)
		if approve {
			if err := checkSchedule(op, req.NewStart, req.NewEnd, now); err != nil {
				return nil, err
			}
			req.Status = domain.RescheduleApproved
			b.StartTime, b.EndTime = req.NewStart, req.NewEnd
			e = s.event(domain.EventBookingRescheduled, b)
		} else {
			req.Status = domain.RescheduleRejected
		}
		if err := s.reschedules.Decide(ctx, req); err != nil {
			return nil, err
		}
		b.Status = domain.BookingConfirmed
		e.Reason = req.Reason
		e.ActorID = &respondedBy
		return []domain.Event{e}, nil
	})
}

// MarkAttendance records that a party joined (or did not join) the session.
func (s *Service) MarkAttendance(ctx context.Context, id uuid.UUID, party domain.Party, attended bool, actualDurationMinutes *int) (*domain.Booking, error) {
	op := string(domain.OpMarkAttendance)
	if actualDurationMinutes != nil && *actualDurationMinutes < 0 {
		return nil, domain.Precondition(op, domain.ErrInvalidArgument, "negative duration %d", *actualDurationMinutes)
	}
	return s.Apply(ctx, id, domain.OpMarkAttendance, func(_ context.Context, b *domain.Booking) ([]domain.Event, error) {
		switch party {
		case domain.PartyTeacher:
			b.TeacherAttended = attended
		case domain.PartyStudent:
			b.StudentAttended = attended
		default:
			return nil, domain.Precondition(op, domain.ErrInvalidArgument, "unknown party %q", party)
		}
		if actualDurationMinutes != nil {
			d := *actualDurationMinutes
			b.ActualDurationMinutes = &d
		}
		return nil, nil
	})
}

// Complete releases the held funds for a delivered session.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.Apply(ctx, id, domain.OpComplete, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		split, err := s.policy.Completion(b.TotalPrice, b.CommissionRate)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Settle(ctx, b, split, "booking completed"); err != nil {
			return nil, err
		}
		b.Status = domain.BookingCompleted
		b.PaymentStatus = domain.PaymentReleased

		e := s.event(domain.EventBookingCompleted, b)
		e.Split = &split
		return []domain.Event{e}, nil
	})
}

// DetectNoShow settles a missed session. Calling it again for a booking whose funds are
// already settled returns the booking unchanged.
func (s *Service) DetectNoShow(ctx context.Context, id uuid.UUID, who domain.NoShowParty) (*domain.Booking, error) {
	if !who.Valid() {
		return nil, domain.Precondition(string(domain.OpDetectNoShow), domain.ErrInvalidArgument, "unknown party %q", who)
	}
	return s.apply(ctx, id, domain.OpDetectNoShow, true, func(ctx context.Context, b *domain.Booking) ([]domain.Event, error) {
		split, err := s.policy.NoShow(b.TotalPrice, b.CommissionRate, who)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Settle(ctx, b, split, fmt.Sprintf("no-show, %s absent", who)); err != nil {
			return nil, err
		}
		b.Status = domain.BookingNoShow
		b.PaymentStatus = SettledStatus(split)
		b.NoShowParty = &who

		e := s.event(domain.EventNoShowDetected, b)
		e.Split = &split
		e.NoShow = who
		return []domain.Event{e}, nil
	})
}

// RaiseDispute freezes the held funds until the dispute is resolved.
func (s *Service) RaiseDispute(ctx context.Context, id uuid.UUID, reason string, raisedBy uuid.UUID) (*domain.Booking, error) {
	if reason == "" {
		return nil, domain.Precondition(string(domain.OpRaiseDispute), domain.ErrInvalidArgument, "reason is required")
	}
	return s.Apply(ctx, id, domain.OpRaiseDispute, func(_ context.Context, b *domain.Booking) ([]domain.Event, error) {
		now := s.now()
		b.Status = domain.BookingDisputed
		b.PaymentStatus = domain.PaymentDisputed
		b.DisputeRaisedAt = &now
		b.DisputeRaisedBy = &raisedBy
		b.DisputeReason = &reason

		e := s.event(domain.EventDisputeRaised, b)
		e.Reason = reason
		e.ActorID = &raisedBy
		return []domain.Event{e}, nil
	})
}

// Apply runs fn against the locked booking if op is permitted in its current state, then
// persists the booking conditionally on that state. Lost races are retried from a fresh read.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, op domain.Operation, fn Mutation) (*domain.Booking, error) {
	return s.apply(ctx, id, op, false, fn)
}

func (s *Service) apply(ctx context.Context, id uuid.UUID, op domain.Operation, skipSettled bool, fn Mutation) (*domain.Booking, error) {
	var (
		booking *domain.Booking
		events  []domain.Event
	)
	err := txretry.Do(ctx, s.txManager, func(ctx context.Context) error {
		booking, events = nil, nil

		b, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.Precondition(string(op), domain.ErrNotFound, "booking %s", id)
		}
		if skipSettled && b.PaymentStatus.Settled() {
			booking = b
			return nil
		}
		if err := domain.CheckTransition(op, b.State()); err != nil {
			return err
		}

		expected := b.State()
		evs, err := fn(ctx, b)
		if err != nil {
			return err
		}
		b.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, b, expected); err != nil {
			return err
		}
		booking, events = b, evs
		return nil
	})
	if err != nil {
		logFailure(op, id, err)
		return nil, err
	}

	s.publisher.Publish(ctx, events...)
	return booking, nil
}

func (s *Service) event(t domain.EventType, b *domain.Booking) domain.Event {
	return domain.NewBookingEvent(t, b, s.now())
}

func (s *Service) checkTeaches(ctx context.Context, op string, teacherID, subjectID uuid.UUID) error {
	ok, err := s.subjects.Teaches(ctx, teacherID, subjectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Precondition(op, domain.ErrTeacherNotQualified, "teacher %s, subject %s", teacherID, subjectID)
	}
	return nil
}

// SettledStatus is the payment status a settlement leaves behind: released when the teacher
// side received anything, refunded otherwise.
func SettledStatus(split domain.Split) domain.PaymentStatus {
	if split.TeacherEarnings+split.PlatformCommission > 0 {
		return domain.PaymentReleased
	}
	return domain.PaymentRefunded
}

func checkSchedule(op string, start, end, now time.Time) error {
	if !start.After(now) {
		return domain.Precondition(op, domain.ErrInvalidSchedule, "start %s is not in the future", start.Format(time.RFC3339))
	}
	if !end.After(start) {
		return domain.Precondition(op, domain.ErrInvalidSchedule, "end must be after start")
	}
	return nil
}

func logFailure(op domain.Operation, id uuid.UUID, err error) {
	fields := []zap.Field{zap.String("op", string(op)), zap.String("booking_id", id.String()), zap.Error(err)}
	if domain.IsPrecondition(err) || errors.Is(err, domain.ErrStaleState) {
		zap.L().Warn("booking transition rejected", fields...)
		return
	}
	zap.L().Error("booking transition failed", fields...)
}
