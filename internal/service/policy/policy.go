// Package policy computes how a booking's held funds are divided between the learner,
// the teacher and the platform for every way a booking can end.
//
// Every split sums exactly to the booking price: the amount attributed to the teacher side
// is floored to a minor unit, teacher earnings are floored again after commission, and the
// remainders go to the learner refund and the platform commission respectively.
package policy

import (
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

const DefaultStudentNoShowShare = 50

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

type Policy struct {
	// studentNoShowShare is the percentage of the price the teacher side keeps when only
	// the student failed to attend.
	studentNoShowShare int64
}

func New(studentNoShowShare int) (*Policy, error) {
	if studentNoShowShare < 0 || studentNoShowShare > 100 {
		return nil, domain.Precondition("policy", domain.ErrInvalidArgument, "student no-show share %d outside [0,100]", studentNoShowShare)
	}
	return &Policy{studentNoShowShare: int64(studentNoShowShare)}, nil
}

func Default() *Policy {
	return &Policy{studentNoShowShare: DefaultStudentNoShowShare}
}

// Completion releases the whole price: commission to the platform, the rest to the teacher.
func (p *Policy) Completion(total int64, rate decimal.Decimal) (domain.Split, error) {
	if err := validate(total, rate); err != nil {
		return domain.Split{}, err
	}
	return split(total, total, rate), nil
}

// Cancellation refunds everything while funds are still held.
func (p *Policy) Cancellation(total int64) (domain.Split, error) {
	if err := validate(total, decimal.Zero); err != nil {
		return domain.Split{}, err
	}
	return domain.Split{Refund: total}, nil
}

func (p *Policy) NoShow(total int64, rate decimal.Decimal, who domain.NoShowParty) (domain.Split, error) {
	if err := validate(total, rate); err != nil {
		return domain.Split{}, err
	}
	switch who {
	case domain.NoShowTeacher, domain.NoShowBoth:
		return domain.Split{Refund: total}, nil
	case domain.NoShowStudent:
		return split(total, percentOf(total, p.studentNoShowShare), rate), nil
	}
	return domain.Split{}, domain.Precondition("no_show", domain.ErrInvalidArgument, "unknown party %q", who)
}

// Dispute splits according to the resolution outcome. teacherPercentage is only read for
// partial outcomes.
func (p *Policy) Dispute(total int64, rate decimal.Decimal, outcome domain.DisputeOutcome, teacherPercentage int) (domain.Split, error) {
	if err := validate(total, rate); err != nil {
		return domain.Split{}, err
	}
	switch outcome {
	case domain.OutcomeReleased:
		return split(total, total, rate), nil
	case domain.OutcomeRefunded:
		return domain.Split{Refund: total}, nil
	case domain.OutcomePartial:
		if teacherPercentage < 0 || teacherPercentage > 100 {
			return domain.Split{}, domain.Precondition("resolve_dispute", domain.ErrInvalidArgument, "teacher percentage %d outside [0,100]", teacherPercentage)
		}
		return split(total, percentOf(total, int64(teacherPercentage)), rate), nil
	}
	return domain.Split{}, domain.Precondition("resolve_dispute", domain.ErrInvalidArgument, "unknown outcome %q", outcome)
}

func split(total, base int64, rate decimal.Decimal) domain.Split {
	teacher := decimal.NewFromInt(base).Mul(one.Sub(rate)).Floor().IntPart()
	return domain.Split{
		Refund:             total - base,
		TeacherEarnings:    teacher,
		PlatformCommission: base - teacher,
	}
}

func percentOf(total, pct int64) int64 {
	return decimal.NewFromInt(total).Mul(decimal.NewFromInt(pct)).Div(hundred).Floor().IntPart()
}

func validate(total int64, rate decimal.Decimal) error {
	if total < 0 {
		return domain.Precondition("policy", domain.ErrInvalidAmount, "negative total %d", total)
	}
	if rate.IsNegative() || rate.GreaterThan(one) {
		return domain.Precondition("policy", domain.ErrInvalidArgument, "commission rate %s outside [0,1]", rate)
	}
	return nil
}
