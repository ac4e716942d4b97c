package disputes

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/dto"
	"github.com/GlebRadaev/tutorpay/internal/handlers/httpx"
	"github.com/GlebRadaev/tutorpay/internal/service/disputeservice"
	"github.com/GlebRadaev/tutorpay/pkg/utils"
)

type Service interface {
	Resolve(ctx context.Context, bookingID uuid.UUID, r disputeservice.Resolution) (*domain.Booking, error)
}

type DisputeHandler struct {
	disputeService Service
}

func New(disputeService Service) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
	}
}

// Resolve godoc
//
//	@Summary		Resolve a dispute
//	@Description	Settle a disputed booking as released, refunded or split by teacher percentage. Admin only.
//	@Tags			Disputes
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Booking ID"
//	@Param			request	body		dto.ResolveDisputeRequestDTO	true	"Resolution"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		403		{object}	utils.Response	"Admin role required"
//	@Failure		404		{object}	utils.Response	"Booking not found"
//	@Failure		409		{object}	utils.Response	"No open dispute"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/bookings/{id}/dispute/resolve [post]
func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ResolveDisputeRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}

	b, err := h.disputeService.Resolve(r.Context(), id, disputeservice.Resolution{
		Outcome:           req.Outcome,
		TeacherPercentage: req.TeacherPercentage,
		Note:              req.Note,
		ResolverID:        actor.ID,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewBookingResponse(b))
}
