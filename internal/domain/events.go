package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingApproved    EventType = "booking.approved"
	EventBookingCancelled   EventType = "booking.cancelled"
	EventBookingCompleted   EventType = "booking.completed"
	EventBookingRescheduled EventType = "booking.rescheduled"
	EventRescheduleRequest  EventType = "booking.reschedule_requested"
	EventRescheduleDeclined EventType = "booking.reschedule_declined"
	EventTeacherReassigned  EventType = "booking.teacher_reassigned"
	EventPaymentHeld        EventType = "booking.payment_held"
	EventNoShowDetected     EventType = "booking.no_show"
	EventDisputeRaised      EventType = "dispute.raised"
	EventDisputeResolved    EventType = "dispute.resolved"
	EventPayoutRequested    EventType = "payout.requested"
	EventPayoutApproved     EventType = "payout.approved"
	EventPayoutRejected     EventType = "payout.rejected"
	EventPayoutProcessed    EventType = "payout.processed"
)

// Event is what the notification collaborator receives once a transition has committed.
type Event struct {
	Type       EventType      `json:"type"`
	BookingID  *uuid.UUID     `json:"booking_id,omitempty"`
	PayoutID   *uuid.UUID     `json:"payout_id,omitempty"`
	Recipients []uuid.UUID    `json:"recipients"`
	Split      *Split         `json:"split,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Outcome    DisputeOutcome `json:"outcome,omitempty"`
	NoShow     NoShowParty    `json:"no_show,omitempty"`
	Succeeded  bool           `json:"succeeded,omitempty"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewBookingEvent(t EventType, b *Booking, now time.Time) Event {
	id := b.ID
	return Event{
		Type:       t,
		BookingID:  &id,
		Recipients: b.Participants(),
		Currency:   b.Currency,
		OccurredAt: now,
	}
}

func NewPayoutEvent(t EventType, p *Payout, now time.Time) Event {
	id := p.ID
	return Event{
		Type:       t,
		PayoutID:   &id,
		Recipients: []uuid.UUID{p.TeacherID},
		Amount:     p.Amount,
		Currency:   p.Currency,
		OccurredAt: now,
	}
}
