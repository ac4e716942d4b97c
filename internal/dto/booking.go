package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

type CreateBookingRequestDTO struct {
	TeacherID   uuid.UUID `json:"teacher_id" validate:"required" example:"3f1c2a9e-7d4b-4e51-9a0c-2b6f8d1e5a77"`
	SubjectID   uuid.UUID `json:"subject_id" validate:"required" example:"a0b1c2d3-e4f5-4a6b-8c7d-9e0f1a2b3c4d"`
	Start       time.Time `json:"start" validate:"required" example:"2024-05-01T10:00:00Z"`
	End         time.Time `json:"end" validate:"required" example:"2024-05-01T11:00:00Z"`
	TotalPrice  int64     `json:"total_price" validate:"gt=0" example:"5000"`
	Currency    string    `json:"currency,omitempty" validate:"omitempty,iso4217" example:"USD"`
	PaymentHeld bool      `json:"payment_held" example:"false"`
}

type CancelBookingRequestDTO struct {
	Reason string `json:"reason" validate:"required,max=500" example:"learner unavailable"`
}

type ReassignTeacherRequestDTO struct {
	TeacherID uuid.UUID `json:"teacher_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500" example:"teacher on sick leave"`
}

type RescheduleRequestDTO struct {
	Start  time.Time `json:"start" validate:"required" example:"2024-05-03T10:00:00Z"`
	End    time.Time `json:"end" validate:"required" example:"2024-05-03T11:00:00Z"`
	Reason string    `json:"reason" validate:"max=500" example:"travelling"`
}

type RescheduleDecisionDTO struct {
	Approve *bool `json:"approve" validate:"required" example:"true"`
}

type AttendanceRequestDTO struct {
	Party                 domain.Party `json:"party" validate:"required,oneof=teacher student" example:"student"`
	Attended              *bool        `json:"attended" validate:"required" example:"true"`
	ActualDurationMinutes *int         `json:"actual_duration_minutes,omitempty" validate:"omitempty,min=0" example:"55"`
}

type NoShowRequestDTO struct {
	Who domain.NoShowParty `json:"who" validate:"required,oneof=teacher student both" example:"teacher"`
}

type RaiseDisputeRequestDTO struct {
	Reason string `json:"reason" validate:"required,max=1000" example:"teacher left after ten minutes"`
}

type BookingResponseDTO struct {
	ID                    uuid.UUID  `json:"id"`
	LearnerID             uuid.UUID  `json:"learner_id"`
	TeacherID             uuid.UUID  `json:"teacher_id"`
	SubjectID             uuid.UUID  `json:"subject_id"`
	Start                 time.Time  `json:"start" example:"2024-05-01T10:00:00Z"`
	End                   time.Time  `json:"end" example:"2024-05-01T11:00:00Z"`
	Status                string     `json:"status" example:"confirmed"`
	PaymentStatus         string     `json:"payment_status" example:"held"`
	TotalPrice            int64      `json:"total_price" example:"5000"`
	Currency              string     `json:"currency" example:"USD"`
	CommissionRate        string     `json:"commission_rate" example:"0.15"`
	CancellationReason    *string    `json:"cancellation_reason,omitempty"`
	NoShowParty           *string    `json:"no_show_party,omitempty" example:"teacher"`
	DisputeReason         *string    `json:"dispute_reason,omitempty"`
	DisputeRaisedAt       *time.Time `json:"dispute_raised_at,omitempty"`
	DisputeOutcome        *string    `json:"dispute_outcome,omitempty" example:"partial"`
	DisputeResolution     *string    `json:"dispute_resolution,omitempty"`
	DisputeResolvedAt     *time.Time `json:"dispute_resolved_at,omitempty"`
	TeacherAttended       bool       `json:"teacher_attended"`
	StudentAttended       bool       `json:"student_attended"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func NewBookingResponse(b *domain.Booking) BookingResponseDTO {
	resp := BookingResponseDTO{
		ID:                    b.ID,
		LearnerID:             b.LearnerID,
		TeacherID:             b.TeacherID,
		SubjectID:             b.SubjectID,
		Start:                 b.StartTime,
		End:                   b.EndTime,
		Status:                string(b.Status),
		PaymentStatus:         string(b.PaymentStatus),
		TotalPrice:            b.TotalPrice,
		Currency:              b.Currency,
		CommissionRate:        b.CommissionRate.String(),
		CancellationReason:    b.CancellationReason,
		DisputeReason:         b.DisputeReason,
		DisputeRaisedAt:       b.DisputeRaisedAt,
		DisputeResolution:     b.DisputeResolution,
		DisputeResolvedAt:     b.DisputeResolvedAt,
		TeacherAttended:       b.TeacherAttended,
		StudentAttended:       b.StudentAttended,
		ActualDurationMinutes: b.ActualDurationMinutes,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
	if b.NoShowParty != nil {
		party := string(*b.NoShowParty)
		resp.NoShowParty = &party
	}
	if b.DisputeOutcome != nil {
		outcome := string(*b.DisputeOutcome)
		resp.DisputeOutcome = &outcome
	}
	return resp
}

type RescheduleResponseDTO struct {
	ID            uuid.UUID `json:"id"`
	BookingID     uuid.UUID `json:"booking_id"`
	RequestedBy   uuid.UUID `json:"requested_by"`
	OriginalStart time.Time `json:"original_start"`
	OriginalEnd   time.Time `json:"original_end"`
	NewStart      time.Time `json:"new_start"`
	NewEnd        time.Time `json:"new_end"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status" example:"pending"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewRescheduleResponse(req *domain.RescheduleRequest) RescheduleResponseDTO {
	return RescheduleResponseDTO{
		ID:            req.ID,
		BookingID:     req.BookingID,
		RequestedBy:   req.RequestedBy,
		OriginalStart: req.OriginalStart,
		OriginalEnd:   req.OriginalEnd,
		NewStart:      req.NewStart,
		NewEnd:        req.NewEnd,
		Reason:        req.Reason,
		Status:        string(req.Status),
		CreatedAt:     req.CreatedAt,
	}
}
