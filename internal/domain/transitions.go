package domain

import "slices"

// State folds status and payment_status into the single value transitions are checked against.
type State struct {
	Status  BookingStatus
	Payment PaymentStatus
}

func (s State) String() string {
	return string(s.Status) + "/" + string(s.Payment)
}

type Operation string

const (
	OpConfirmPayment    Operation = "confirm_payment"
	OpApprove           Operation = "approve"
	OpCancel            Operation = "cancel"
	OpReassignTeacher   Operation = "reassign_teacher"
	OpReschedule        Operation = "reschedule"
	OpRequestReschedule Operation = "request_reschedule"
	OpRespondReschedule Operation = "respond_reschedule"
	OpMarkAttendance    Operation = "mark_attendance"
	OpComplete          Operation = "complete"
	OpDetectNoShow      Operation = "detect_no_show"
	OpRaiseDispute      Operation = "raise_dispute"
	OpResolveDispute    Operation = "resolve_dispute"
)

type rule struct {
	statuses []BookingStatus
	payments []PaymentStatus // nil allows any payment status
}

var open = []BookingStatus{BookingPending, BookingAwaitingApproval, BookingConfirmed, BookingRescheduling}

var rules = map[Operation]rule{
	OpConfirmPayment:    {statuses: open, payments: []PaymentStatus{PaymentPending}},
	OpApprove:           {statuses: []BookingStatus{BookingPending, BookingAwaitingApproval}},
	OpCancel:            {statuses: open, payments: []PaymentStatus{PaymentPending, PaymentHeld}},
	OpReassignTeacher:   {statuses: append(slices.Clone(open), BookingDisputed)},
	OpReschedule:        {statuses: open},
	OpRequestReschedule: {statuses: []BookingStatus{BookingConfirmed}},
	OpRespondReschedule: {statuses: []BookingStatus{BookingRescheduling}},
	OpMarkAttendance:    {statuses: []BookingStatus{BookingConfirmed}},
	OpComplete:          {statuses: []BookingStatus{BookingConfirmed}, payments: []PaymentStatus{PaymentHeld}},
	OpDetectNoShow:      {statuses: []BookingStatus{BookingConfirmed, BookingRescheduling}, payments: []PaymentStatus{PaymentHeld}},
	OpRaiseDispute:      {statuses: open, payments: []PaymentStatus{PaymentHeld}},
	OpResolveDispute:    {statuses: []BookingStatus{BookingDisputed}, payments: []PaymentStatus{PaymentDisputed}},
}

// CheckTransition returns a precondition error when op may not be applied in state s.
func CheckTransition(op Operation, s State) error {
	r, ok := rules[op]
	if !ok {
		return Precondition(string(op), ErrInvalidStatus, "unknown operation")
	}
	if !slices.Contains(r.statuses, s.Status) {
		return Precondition(string(op), ErrInvalidStatus, "status %q does not permit %s", s.Status, op)
	}
	if r.payments != nil && !slices.Contains(r.payments, s.Payment) {
		return Precondition(string(op), ErrInvalidStatus, "payment status %q does not permit %s", s.Payment, op)
	}
	return nil
}

var payoutRules = map[Operation][]PayoutStatus{
	OpApprovePayout: {PayoutPending},
	OpRejectPayout:  {PayoutPending, PayoutApproved},
	OpProcessPayout: {PayoutApproved},
	OpReversePayout: {PayoutProcessingFailed},
	OpConfirmPayout: {PayoutProcessingFailed},
}

const (
	OpApprovePayout Operation = "approve_payout"
	OpRejectPayout  Operation = "reject_payout"
	OpProcessPayout Operation = "process_payout"
	// A failed send is settled by hand: reversed back to the wallet or
	// confirmed as delivered once the gateway has been checked.
	OpReversePayout Operation = "reverse_payout"
	OpConfirmPayout Operation = "confirm_payout"
)

func CheckPayoutTransition(op Operation, s PayoutStatus) error {
	if !slices.Contains(payoutRules[op], s) {
		return Precondition(string(op), ErrInvalidStatus, "payout status %q does not permit %s", s, op)
	}
	return nil
}
