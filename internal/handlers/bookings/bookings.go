package bookings

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/internal/dto"
	"github.com/GlebRadaev/tutorpay/internal/handlers/httpx"
	"github.com/GlebRadaev/tutorpay/internal/service/bookingservice"
	"github.com/GlebRadaev/tutorpay/pkg/auth"
	"github.com/GlebRadaev/tutorpay/pkg/utils"
)

type Service interface {
	Create(ctx context.Context, in bookingservice.CreateInput) (*domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Approve(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, actor uuid.UUID) (*domain.Booking, error)
	ReassignTeacher(ctx context.Context, id, teacherID uuid.UUID, reason string) (*domain.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, start, end time.Time, reason string) (*domain.Booking, error)
	RequestReschedule(ctx context.Context, id, requestedBy uuid.UUID, start, end time.Time, reason string) (*domain.RescheduleRequest, error)
	RespondReschedule(ctx context.Context, id, requestID, respondedBy uuid.UUID, approve bool) (*domain.Booking, error)
	MarkAttendance(ctx context.Context, id uuid.UUID, party domain.Party, attended bool, actualDurationMinutes *int) (*domain.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	DetectNoShow(ctx context.Context, id uuid.UUID, who domain.NoShowParty) (*domain.Booking, error)
	RaiseDispute(ctx context.Context, id uuid.UUID, reason string, raisedBy uuid.UUID) (*domain.Booking, error)
}

type BookingHandler struct {
	bookingService Service
	currency       string
}

func New(bookingService Service, defaultCurrency string) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		currency:       defaultCurrency,
	}
}

// visible reports whether actor may see and act on b. Admins see every booking.
func visible(b *domain.Booking, actor auth.Actor) bool {
	return actor.Role == auth.RoleAdmin || slices.Contains(b.Participants(), actor.ID)
}

// participant resolves the actor and the booking in the path. Bookings the actor takes no
// part in answer 404, the same as missing ones.
func (h *BookingHandler) participant(w http.ResponseWriter, r *http.Request) (auth.Actor, *domain.Booking, bool) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return actor, nil, false
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return actor, nil, false
	}
	b, err := h.bookingService.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return actor, nil, false
	}
	if !visible(b, actor) {
		utils.RespondWithError(w, http.StatusNotFound, "booking not found")
		return actor, nil, false
	}
	return actor, b, true
}

// assignedTeacher lets the booking's own teacher through, and admins.
func (h *BookingHandler) assignedTeacher(w http.ResponseWriter, r *http.Request) (*domain.Booking, bool) {
	actor, b, ok := h.participant(w, r)
	if !ok {
		return nil, false
	}
	if actor.Role != auth.RoleAdmin && b.TeacherID != actor.ID {
		utils.RespondWithError(w, http.StatusForbidden, "only the booking's teacher can do this")
		return nil, false
	}
	return b, true
}

func respond(w http.ResponseWriter, status int, b *domain.Booking, err error) {
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, status, dto.NewBookingResponse(b))
}

// Create godoc
//
//	@Summary		Book a session
//	@Description	Reserve a session with a teacher for the authenticated learner. The current commission rate is fixed on the booking.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.CreateBookingRequestDTO	true	"Booking request"
//	@Success		201		{object}	dto.BookingResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"User not authorized"
//	@Failure		422		{object}	utils.Response	"Invalid schedule, price or teacher"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/bookings [post]
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var req dto.CreateBookingRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = h.currency
	}

	b, err := h.bookingService.Create(r.Context(), bookingservice.CreateInput{
		LearnerID:   actor.ID,
		TeacherID:   req.TeacherID,
		SubjectID:   req.SubjectID,
		Start:       req.Start,
		End:         req.End,
		TotalPrice:  req.TotalPrice,
		Currency:    currency,
		PaymentHeld: req.PaymentHeld,
	})
	respond(w, http.StatusCreated, b, err)
}

// Get godoc
//
//	@Summary		Get a booking
//	@Description	Visible to its learner, its teacher and admins.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Booking ID"
//	@Success		200	{object}	dto.BookingResponseDTO
//	@Failure		401	{object}	utils.Response	"User not authorized"
//	@Failure		404	{object}	utils.Response	"Booking not found"
//	@Failure		500	{object}	utils.Response	"Internal server error"
//	@Router			/api/bookings/{id} [get]
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}

	b, err := h.bookingService.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if !visible(b, actor) {
		utils.RespondWithError(w, http.StatusNotFound, "booking not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewBookingResponse(b))
}

// ConfirmPayment godoc
//
//	@Summary		Confirm payment
//	@Description	Mark the learner's payment as held in escrow.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Booking ID"
//	@Success		200	{object}	dto.BookingResponseDTO
//	@Failure		404	{object}	utils.Response	"Booking not found"
//	@Failure		409	{object}	utils.Response	"Payment already confirmed"
//	@Router			/api/bookings/{id}/payment [post]
func (h *BookingHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.bookingService.ConfirmPayment(r.Context(), id)
	respond(w, http.StatusOK, b, err)
}

// Approve godoc
//
//	@Summary		Approve a booking
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Booking ID"
//	@Success		200	{object}	dto.BookingResponseDTO
//	@Failure		403	{object}	utils.Response	"Not the booking's teacher"
//	@Failure		404	{object}	utils.Response	"Booking not found"
//	@Failure		409	{object}	utils.Response	"Booking is not awaiting approval"
//	@Router			/api/bookings/{id}/approve [post]
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	b, ok := h.assignedTeacher(w, r)
	if !ok {
		return
	}
	b, err := h.bookingService.Approve(r.Context(), b.ID)
	respond(w, http.StatusOK, b, err)
}

// Cancel godoc
//
//	@Summary		Cancel a booking
//	@Description	Cancel the booking and refund any held payment in full.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Booking ID"
//	@Param			request	body		dto.CancelBookingRequestDTO	true	"Cancellation reason"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		404		{object}	utils.Response	"Booking not found"
//	@Failure		409		{object}	utils.Response	"Booking can no longer be cancelled"
//	@Router			/api/bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelBookingRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	actor, b, ok := h.participant(w, r)
	if !ok {
		return
	}
	b, err := h.bookingService.Cancel(r.Context(), b.ID, req.Reason, actor.ID)
	respond(w, http.StatusOK, b, err)
}

// ReassignTeacher godoc
//
//	@Summary		Reassign the teacher
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Booking ID"
//	@Param			request	body		dto.ReassignTeacherRequestDTO	true	"New teacher"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		409		{object}	utils.Response	"Booking is closed"
//	@Failure		422		{object}	utils.Response	"Teacher does not teach the subject"
//	@Router			/api/bookings/{id}/reassign [post]
func (h *BookingHandler) ReassignTeacher(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ReassignTeacherRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	b, err := h.bookingService.ReassignTeacher(r.Context(), id, req.TeacherID, req.Reason)
	respond(w, http.StatusOK, b, err)
}

// Reschedule godoc
//
//	@Summary		Move a booking
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Booking ID"
//	@Param			request	body		dto.RescheduleRequestDTO	true	"New slot"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		409		{object}	utils.Response	"Booking cannot be rescheduled"
//	@Failure		422		{object}	utils.Response	"Invalid schedule"
//	@Router			/api/bookings/{id}/reschedule [post]
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.RescheduleRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	b, err := h.bookingService.Reschedule(r.Context(), id, req.Start, req.End, req.Reason)
	respond(w, http.StatusOK, b, err)
}

// RequestReschedule godoc
//
//	@Summary		Ask to move a booking
//	@Description	Open a reschedule request that the other party approves or rejects.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Booking ID"
//	@Param			request	body		dto.RescheduleRequestDTO	true	"Proposed slot"
//	@Success		201		{object}	dto.RescheduleResponseDTO
//	@Failure		409		{object}	utils.Response	"Booking is not confirmed"
//	@Failure		422		{object}	utils.Response	"Invalid schedule"
//	@Router			/api/bookings/{id}/reschedule-requests [post]
func (h *BookingHandler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	var req dto.RescheduleRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	actor, b, ok := h.participant(w, r)
	if !ok {
		return
	}
	rr, err := h.bookingService.RequestReschedule(r.Context(), b.ID, actor.ID, req.Start, req.End, req.Reason)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.NewRescheduleResponse(rr))
}

// RespondReschedule godoc
//
//	@Summary		Answer a reschedule request
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Booking ID"
//	@Param			rid		path		string					true	"Reschedule request ID"
//	@Param			request	body		dto.RescheduleDecisionDTO	true	"Decision"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		403		{object}	utils.Response	"Requester cannot answer their own request"
//	@Failure		404		{object}	utils.Response	"Request not found"
//	@Failure		409		{object}	utils.Response	"Request already decided"
//	@Router			/api/bookings/{id}/reschedule-requests/{rid} [post]
func (h *BookingHandler) RespondReschedule(w http.ResponseWriter, r *http.Request) {
	requestID, ok := httpx.PathID(w, r, "rid")
	if !ok {
		return
	}
	var req dto.RescheduleDecisionDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	actor, b, ok := h.participant(w, r)
	if !ok {
		return
	}
	b, err := h.bookingService.RespondReschedule(r.Context(), b.ID, requestID, actor.ID, *req.Approve)
	respond(w, http.StatusOK, b, err)
}

// MarkAttendance godoc
//
//	@Summary		Record attendance
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Booking ID"
//	@Param			request	body		dto.AttendanceRequestDTO	true	"Attendance"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		403		{object}	utils.Response	"Participants record only their own attendance"
//	@Failure		404		{object}	utils.Response	"Booking not found"
//	@Failure		409		{object}	utils.Response	"Booking is not confirmed"
//	@Router			/api/bookings/{id}/attendance [post]
func (h *BookingHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req dto.AttendanceRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	actor, b, ok := h.participant(w, r)
	if !ok {
		return
	}
	if actor.Role != auth.RoleAdmin && ownParty(b, actor.ID) != req.Party {
		utils.RespondWithError(w, http.StatusForbidden, "attendance can only be recorded for yourself")
		return
	}
	b, err := h.bookingService.MarkAttendance(r.Context(), b.ID, req.Party, *req.Attended, req.ActualDurationMinutes)
	respond(w, http.StatusOK, b, err)
}

// Complete godoc
//
//	@Summary		Complete a session
//	@Description	Release the held payment to the teacher, less the platform commission.
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Booking ID"
//	@Success		200	{object}	dto.BookingResponseDTO
//	@Failure		403	{object}	utils.Response	"Not the booking's teacher"
//	@Failure		404	{object}	utils.Response	"Booking not found"
//	@Failure		409	{object}	utils.Response	"Booking is not confirmed"
//	@Router			/api/bookings/{id}/complete [post]
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	b, ok := h.assignedTeacher(w, r)
	if !ok {
		return
	}
	b, err := h.bookingService.Complete(r.Context(), b.ID)
	respond(w, http.StatusOK, b, err)
}

// DetectNoShow godoc
//
//	@Summary		Settle a no-show
//	@Tags			Bookings
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Booking ID"
//	@Param			request	body		dto.NoShowRequestDTO	true	"Absent party"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		409		{object}	utils.Response	"Booking cannot be settled as a no-show"
//	@Router			/api/bookings/{id}/no-show [post]
func (h *BookingHandler) DetectNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.NoShowRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	b, err := h.bookingService.DetectNoShow(r.Context(), id, req.Who)
	respond(w, http.StatusOK, b, err)
}

// RaiseDispute godoc
//
//	@Summary		Dispute a booking
//	@Description	Freeze the held payment until an admin resolves the dispute.
//	@Tags			Disputes
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Booking ID"
//	@Param			request	body		dto.RaiseDisputeRequestDTO	true	"Dispute reason"
//	@Success		200		{object}	dto.BookingResponseDTO
//	@Failure		409		{object}	utils.Response	"Booking cannot be disputed"
//	@Router			/api/bookings/{id}/dispute [post]
func (h *BookingHandler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	var req dto.RaiseDisputeRequestDTO
	if !httpx.Decode(w, r, &req) {
		return
	}
	actor, b, ok := h.participant(w, r)
	if !ok {
		return
	}
	b, err := h.bookingService.RaiseDispute(r.Context(), b.ID, req.Reason, actor.ID)
	respond(w, http.StatusOK, b, err)
}

// ownParty is the side of b that userID attends as.
func ownParty(b *domain.Booking, userID uuid.UUID) domain.Party {
	switch userID {
	case b.TeacherID:
		return domain.PartyTeacher
	case b.LearnerID:
		return domain.PartyStudent
	}
	return ""
}
