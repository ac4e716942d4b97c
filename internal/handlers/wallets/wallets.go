package wallets

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/dto"
	"github.com/GlebRadaev/tutorpay/internal/handlers/httpx"
	"github.com/GlebRadaev/tutorpay/internal/service/ledgerservice"
	"github.com/GlebRadaev/tutorpay/pkg/utils"
)

type Service interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*ledgerservice.Reconciliation, error)
}

type WalletHandler struct {
	ledgerService Service
}

func New(ledgerService Service) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
	}
}

// GetWallet godoc
//
//	@Summary		Get wallet balance
//	@Description	Balance in minor units of the wallet currency. A user without history has an empty wallet.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	dto.WalletResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	wallet, err := h.ledgerService.GetWallet(r.Context(), actor.ID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.WalletResponseDTO{
		UserID:    wallet.UserID,
		Balance:   wallet.Balance,
		Currency:  wallet.Currency,
		UpdatedAt: wallet.UpdatedAt,
	})
}

// GetTransactions godoc
//
//	@Summary		Get wallet history
//	@Description	Ledger entries of the authenticated user, newest first.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of entries"
//	@Success		200		{array}		dto.TransactionResponseDTO
//	@Success		204		{object}	utils.Response	"No transactions"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	txs, err := h.ledgerService.Transactions(r.Context(), actor.ID, limit)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if len(txs) == 0 {
		utils.RespondWithError(w, http.StatusNoContent, "No transactions")
		return
	}

	response := make([]dto.TransactionResponseDTO, len(txs))
	for i, tx := range txs {
		response[i] = dto.TransactionResponseDTO{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			Status:      string(tx.Status),
			BookingID:   tx.BookingID,
			PayoutID:    tx.PayoutID,
			Description: tx.Description,
			CreatedAt:   tx.CreatedAt,
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, response)
}

// Reconcile godoc
//
//	@Summary		Reconcile a wallet
//	@Description	Compare a user's balance with the sum of completed ledger entries. Admin only.
//	@Tags			Wallet
//	@Security		BearerAuth
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Success		200		{object}	ledgerservice.Reconciliation
//	@Failure		400		{object}	utils.Response	"Invalid user id"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/wallets/{userID}/reconcile [get]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.PathID(w, r, "userID")
	if !ok {
		return
	}
	rec, err := h.ledgerService.Reconcile(r.Context(), userID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rec)
}
