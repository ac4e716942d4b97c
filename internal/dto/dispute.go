package dto

import "github.com/GlebRadaev/tutorpay/internal/domain"

type ResolveDisputeRequestDTO struct {
	Outcome           domain.DisputeOutcome `json:"outcome" validate:"required,oneof=released refunded partial" example:"partial"`
	TeacherPercentage int                   `json:"teacher_percentage" validate:"min=0,max=100" example:"40"`
	Note              string                `json:"note" validate:"max=1000" example:"lesson cut short by connection issues"`
}
