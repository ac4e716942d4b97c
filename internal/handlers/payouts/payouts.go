package payouts

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/dto"
	"github.com/GlebRadaev/tutorpay/internal/handlers/httpx"
	"github.com/GlebRadaev/tutorpay/internal/service/payoutservice"
	"github.com/GlebRadaev/tutorpay/pkg/auth"
	"github.com/GlebRadaev/tutorpay/pkg/utils"
)

type Service interface {
	Request(ctx context.Context, teacherID uuid.UUID, amount int64, destination string) (*domain.Payout, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	List(ctx context.Context, f domain.PayoutFilter) ([]domain.Payout, error)
	Approve(ctx context.Context, id, approverID uuid.UUID) (*domain.Payout, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, approverID uuid.UUID) (*domain.Payout, error)
	Process(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Reverse(ctx context.Context, id uuid.UUID, reason string, approverID uuid.UUID) (*domain.Payout, error)
	Confirm(ctx context.Context, id uuid.UUID, gatewayRef string, approverID uuid.UUID) (*domain.Payout, error)
	BulkApprove(ctx context.Context, ids []uuid.UUID, approverID uuid.UUID) payoutservice.BulkResult
}

var statuses = []domain.PayoutStatus{
	domain.PayoutPending,
	domain.PayoutApproved,
	domain.PayoutRejected,
	domain.PayoutProcessing,
	domain.PayoutCompleted,
	domain.PayoutProcessingFailed,
}

type PayoutHandler struct {
	payoutService Service
}

func New(payoutService Service) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

func respond(w http.ResponseWriter, status int, p *domain.Payout, err error) {
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, status, dto.NewPayoutResponse(p))
}

// Request godoc
//
//	@Summary		Request a payout
//	@Description	Ask to withdraw earnings from the authenticated teacher's wallet. Card numbers must pass the Luhn check.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PayoutRequestDTO	true	"Payout request"
//	@Success		201		{object}	dto.PayoutResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		402		{object}	utils.Response	"Insufficient balance"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/payouts [post]
func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var req dto.PayoutRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	p, err := h.payoutService.Request(r.Context(), actor.ID, req.Amount, req.Destination)
	respond(w, http.StatusCreated, p, err)
}

// List godoc
//
//	@Summary		List payouts
//	@Description	Teachers see their own payouts, admins see all of them.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Produce		json
//	@Param			status	query		string	false	"Payout status"
//	@Param			limit	query		int		false	"Maximum number of payouts"
//	@Success		200		{array}		dto.PayoutResponseDTO
//	@Success		204		{object}	utils.Response	"No payouts"
//	@Failure		400		{object}	utils.Response	"Unknown status"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/payouts [get]
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}

	var f domain.PayoutFilter
	if actor.Role != auth.RoleAdmin {
		f.TeacherID = &actor.ID
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.PayoutStatus(s)
		if !slices.Contains(statuses, status) {
			utils.RespondWithError(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
		f.Status = &status
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = limit
	}

	payouts, err := h.payoutService.List(r.Context(), f)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if len(payouts) == 0 {
		utils.RespondWithError(w, http.StatusNoContent, "No payouts")
		return
	}

	response := make([]dto.PayoutResponseDTO, len(payouts))
	for i := range payouts {
		response[i] = dto.NewPayoutResponse(&payouts[i])
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// Get godoc
//
//	@Summary		Get a payout
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Payout ID"
//	@Success		200	{object}	dto.PayoutResponseDTO
//	@Failure		404	{object}	utils.Response	"Payout not found"
//	@Router			/api/payouts/{id} [get]
func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.payoutService.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if actor.Role != auth.RoleAdmin && p.TeacherID != actor.ID {
		utils.RespondWithError(w, http.StatusNotFound, "payout not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewPayoutResponse(p))
}

// Approve godoc
//
//	@Summary		Approve a payout
//	@Description	Debit the teacher's wallet and queue the payout for processing. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Payout ID"
//	@Success		200	{object}	dto.PayoutResponseDTO
//	@Failure		402	{object}	utils.Response	"Insufficient balance"
//	@Failure		409	{object}	utils.Response	"Payout is not pending"
//	@Router			/api/payouts/{id}/approve [post]
func (h *PayoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.payoutService.Approve(r.Context(), id, actor.ID)
	respond(w, http.StatusOK, p, err)
}

// Reject godoc
//
//	@Summary		Reject a payout
//	@Description	An approved payout is credited back to the teacher's wallet. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Payout ID"
//	@Param			request	body		dto.RejectPayoutRequestDTO	true	"Rejection reason"
//	@Success		200		{object}	dto.PayoutResponseDTO
//	@Failure		409		{object}	utils.Response	"Payout can no longer be rejected"
//	@Router			/api/payouts/{id}/reject [post]
func (h *PayoutHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.RejectPayoutRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	p, err := h.payoutService.Reject(r.Context(), id, req.Reason, actor.ID)
	respond(w, http.StatusOK, p, err)
}

// Process godoc
//
//	@Summary		Send a payout
//	@Description	Hand an approved payout to the payment gateway and record the outcome. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Payout ID"
//	@Success		200	{object}	dto.PayoutResponseDTO
//	@Failure		409	{object}	utils.Response	"Payout is not approved"
//	@Router			/api/payouts/{id}/process [post]
func (h *PayoutHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.payoutService.Process(r.Context(), id)
	respond(w, http.StatusOK, p, err)
}

// Reverse godoc
//
//	@Summary		Reverse a failed payout
//	@Description	Credit a payout that failed at the gateway back to the teacher's wallet. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Payout ID"
//	@Param			request	body		dto.RejectPayoutRequestDTO	true	"Reversal reason"
//	@Success		200		{object}	dto.PayoutResponseDTO
//	@Failure		409		{object}	utils.Response	"Payout has not failed"
//	@Router			/api/payouts/{id}/reverse [post]
func (h *PayoutHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.RejectPayoutRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	p, err := h.payoutService.Reverse(r.Context(), id, req.Reason, actor.ID)
	respond(w, http.StatusOK, p, err)
}

// Confirm godoc
//
//	@Summary		Confirm a failed payout as delivered
//	@Description	Mark a payout that failed at the gateway as completed once the gateway shows it was paid. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Payout ID"
//	@Param			request	body		dto.ConfirmPayoutRequestDTO	true	"Gateway reference"
//	@Success		200		{object}	dto.PayoutResponseDTO
//	@Failure		409		{object}	utils.Response	"Payout has not failed"
//	@Router			/api/payouts/{id}/confirm [post]
func (h *PayoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ConfirmPayoutRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	p, err := h.payoutService.Confirm(r.Context(), id, req.GatewayRef, actor.ID)
	respond(w, http.StatusOK, p, err)
}

// BulkApprove godoc
//
//	@Summary		Approve payouts in bulk
//	@Description	Each payout is approved on its own; failures are reported per id. Admin only.
//	@Tags			Payouts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.BulkApproveRequestDTO	true	"Payout IDs"
//	@Success		200		{object}	payoutservice.BulkResult
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Router			/api/payouts/bulk-approve [post]
func (h *PayoutHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var req dto.BulkApproveRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, h.payoutService.BulkApprove(r.Context(), req.IDs, actor.ID))
}
