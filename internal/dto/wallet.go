package dto

import (
	"time"

	"github.com/google/uuid"
)

type WalletResponseDTO struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance" example:"4250"`
	Currency  string    `json:"currency" example:"USD"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionResponseDTO struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type" example:"credit"`
	Amount      int64      `json:"amount" example:"4250"`
	Currency    string     `json:"currency" example:"USD"`
	Status      string     `json:"status" example:"completed"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	PayoutID    *uuid.UUID `json:"payout_id,omitempty"`
	Description string     `json:"description" example:"booking completed"`
	CreatedAt   time.Time  `json:"created_at"`
}
