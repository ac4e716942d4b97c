package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
)

type PayoutRequestDTO struct {
	Amount      int64  `json:"amount" validate:"gt=0" example:"4250"`
	Destination string `json:"destination" validate:"required,destination" example:"4561261212345467"`
}

type RejectPayoutRequestDTO struct {
	Reason string `json:"reason" validate:"required,max=500" example:"destination account closed"`
}

type ConfirmPayoutRequestDTO struct {
	GatewayRef string `json:"gateway_ref" validate:"required,max=200" example:"gw-2024-000123"`
}

type BulkApproveRequestDTO struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

type PayoutResponseDTO struct {
	ID              uuid.UUID  `json:"id"`
	TeacherID       uuid.UUID  `json:"teacher_id"`
	Amount          int64      `json:"amount" example:"4250"`
	Currency        string     `json:"currency" example:"USD"`
	Destination     string     `json:"destination" example:"4561261212345467"`
	Status          string     `json:"status" example:"pending"`
	RequestedAt     time.Time  `json:"requested_at"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	GatewayRef      *string    `json:"gateway_ref,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
}

func NewPayoutResponse(p *domain.Payout) PayoutResponseDTO {
	return PayoutResponseDTO{
		ID:              p.ID,
		TeacherID:       p.TeacherID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Destination:     p.Destination,
		Status:          string(p.Status),
		RequestedAt:     p.RequestedAt,
		ApprovedBy:      p.ApprovedBy,
		ApprovedAt:      p.ApprovedAt,
		RejectionReason: p.RejectionReason,
		ProcessedAt:     p.ProcessedAt,
		GatewayRef:      p.GatewayRef,
		FailureReason:   p.FailureReason,
	}
}
