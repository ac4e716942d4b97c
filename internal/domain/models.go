package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Booking struct {
	ID                    uuid.UUID       `db:"id"`
	LearnerID             uuid.UUID       `db:"learner_id"`
	TeacherID             uuid.UUID       `db:"teacher_id"`
	SubjectID             uuid.UUID       `db:"subject_id"`
	StartTime             time.Time       `db:"start_time"`
	EndTime               time.Time       `db:"end_time"`
	Status                BookingStatus   `db:"status"`
	PaymentStatus         PaymentStatus   `db:"payment_status"`
	TotalPrice            int64           `db:"total_price"`
	Currency              string          `db:"currency"`
	CommissionRate        decimal.Decimal `db:"commission_rate"`
	CancellationReason    *string         `db:"cancellation_reason"`
	NoShowParty           *NoShowParty    `db:"no_show_party"`
	DisputeRaisedAt       *time.Time      `db:"dispute_raised_at"`
	DisputeRaisedBy       *uuid.UUID      `db:"dispute_raised_by"`
	DisputeReason         *string         `db:"dispute_reason"`
	DisputeResolvedAt     *time.Time      `db:"dispute_resolved_at"`
	DisputeResolution     *string         `db:"dispute_resolution"`
	DisputeOutcome        *DisputeOutcome `db:"dispute_outcome"`
	TeacherAttended       bool            `db:"teacher_attended"`
	StudentAttended       bool            `db:"student_attended"`
	ActualDurationMinutes *int            `db:"actual_duration_minutes"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// Participants returns the learner and the teacher, in that order.
func (b *Booking) Participants() []uuid.UUID {
	return []uuid.UUID{b.LearnerID, b.TeacherID}
}

// State is the composite lifecycle position of a booking.
func (b *Booking) State() State {
	return State{Status: b.Status, Payment: b.PaymentStatus}
}

type Wallet struct {
	UserID    uuid.UUID `db:"user_id"`
	Balance   int64     `db:"balance"`
	Currency  string    `db:"currency"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Transaction struct {
	ID          uuid.UUID         `db:"id"`
	UserID      uuid.UUID         `db:"user_id"`
	Type        TransactionType   `db:"type"`
	Amount      int64             `db:"amount"`
	Currency    string            `db:"currency"`
	Status      TransactionStatus `db:"status"`
	BookingID   *uuid.UUID        `db:"booking_id"`
	PayoutID    *uuid.UUID        `db:"payout_id"`
	Description string            `db:"description"`
	CreatedAt   time.Time         `db:"created_at"`
}

// PlatformEarning is the commission slice of a settlement. TransactionID points at the
// teacher credit it was split from and is nil when the teacher received nothing.
type PlatformEarning struct {
	ID            uuid.UUID  `db:"id"`
	BookingID     uuid.UUID  `db:"booking_id"`
	TransactionID *uuid.UUID `db:"transaction_id"`
	Amount        int64      `db:"amount"`
	Currency      string     `db:"currency"`
	CreatedAt     time.Time  `db:"created_at"`
}

type Payout struct {
	ID              uuid.UUID    `db:"id"`
	TeacherID       uuid.UUID    `db:"teacher_id"`
	Amount          int64        `db:"amount"`
	Currency        string       `db:"currency"`
	Destination     string       `db:"destination"`
	Status          PayoutStatus `db:"status"`
	RequestedAt     time.Time    `db:"requested_at"`
	ApprovedBy      *uuid.UUID   `db:"approved_by"`
	ApprovedAt      *time.Time   `db:"approved_at"`
	RejectionReason *string      `db:"rejection_reason"`
	ProcessedAt     *time.Time   `db:"processed_at"`
	GatewayRef      *string      `db:"gateway_ref"`
	FailureReason   *string      `db:"failure_reason"`
}

type RescheduleRequest struct {
	ID            uuid.UUID        `db:"id"`
	BookingID     uuid.UUID        `db:"booking_id"`
	RequestedBy   uuid.UUID        `db:"requested_by"`
	OriginalStart time.Time        `db:"original_start"`
	OriginalEnd   time.Time        `db:"original_end"`
	NewStart      time.Time        `db:"new_start"`
	NewEnd        time.Time        `db:"new_end"`
	Reason        string           `db:"reason"`
	Status        RescheduleStatus `db:"status"`
	CreatedAt     time.Time        `db:"created_at"`
	DecidedAt     *time.Time       `db:"decided_at"`
}

// Split is the final destination of a booking's held funds, in minor units.
type Split struct {
	Refund             int64 `json:"refund"`
	TeacherEarnings    int64 `json:"teacher_earnings"`
	PlatformCommission int64 `json:"platform_commission"`
}

func (s Split) Total() int64 {
	return s.Refund + s.TeacherEarnings + s.PlatformCommission
}

// Link ties a ledger entry back to the entity that caused it.
type Link struct {
	BookingID *uuid.UUID
	PayoutID  *uuid.UUID
}

func BookingLink(id uuid.UUID) Link {
	return Link{BookingID: &id}
}

func PayoutLink(id uuid.UUID) Link {
	return Link{PayoutID: &id}
}

// PayoutFilter narrows payout listings. Zero values match everything.
type PayoutFilter struct {
	TeacherID *uuid.UUID
	Status    *PayoutStatus
	Limit     int
}

// PayoutInstruction is what the gateway is asked to execute.
type PayoutInstruction struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Destination string    `json:"destination"`
}

type GatewayReceipt struct {
	Succeeded bool   `json:"succeeded"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}
