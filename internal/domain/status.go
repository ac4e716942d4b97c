package domain

type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingAwaitingApproval BookingStatus = "awaiting_approval"
	BookingConfirmed        BookingStatus = "confirmed"
	BookingRescheduling     BookingStatus = "rescheduling"
	BookingDisputed         BookingStatus = "disputed"
	BookingNoShow           BookingStatus = "no_show"
	BookingCompleted        BookingStatus = "completed"
	BookingCancelled        BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentDisputed PaymentStatus = "disputed"
)

// Settled reports whether the held funds already reached their final destination.
func (p PaymentStatus) Settled() bool {
	return p == PaymentReleased || p == PaymentRefunded
}

type NoShowParty string

const (
	NoShowTeacher NoShowParty = "teacher"
	NoShowStudent NoShowParty = "student"
	NoShowBoth    NoShowParty = "both"
)

func (p NoShowParty) Valid() bool {
	switch p {
	case NoShowTeacher, NoShowStudent, NoShowBoth:
		return true
	}
	return false
}

type DisputeOutcome string

const (
	OutcomeReleased DisputeOutcome = "released"
	OutcomeRefunded DisputeOutcome = "refunded"
	OutcomePartial  DisputeOutcome = "partial"
)

func (o DisputeOutcome) Valid() bool {
	switch o {
	case OutcomeReleased, OutcomeRefunded, OutcomePartial:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

type PayoutStatus string

const (
	PayoutPending          PayoutStatus = "pending"
	PayoutApproved         PayoutStatus = "approved"
	PayoutRejected         PayoutStatus = "rejected"
	PayoutProcessing       PayoutStatus = "processing"
	PayoutCompleted        PayoutStatus = "completed"
	PayoutProcessingFailed PayoutStatus = "processing_failed"
)

type RescheduleStatus string

const (
	ReschedulePending  RescheduleStatus = "pending"
	RescheduleApproved RescheduleStatus = "approved"
	RescheduleRejected RescheduleStatus = "rejected"
)

type Party string

const (
	PartyTeacher Party = "teacher"
	PartyStudent Party = "student"
)
