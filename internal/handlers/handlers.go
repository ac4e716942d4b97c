package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/GlebRadaev/tutorpay/docs"
	bookinghandlers "github.com/GlebRadaev/tutorpay/internal/handlers/bookings"
	disputehandlers "github.com/GlebRadaev/tutorpay/internal/handlers/disputes"
	payouthandlers "github.com/GlebRadaev/tutorpay/internal/handlers/payouts"
	wallethandlers "github.com/GlebRadaev/tutorpay/internal/handlers/wallets"
	"github.com/GlebRadaev/tutorpay/internal/service"
	"github.com/GlebRadaev/tutorpay/pkg/auth"
)

type BookingHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	ConfirmPayment(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	ReassignTeacher(w http.ResponseWriter, r *http.Request)
	Reschedule(w http.ResponseWriter, r *http.Request)
	RequestReschedule(w http.ResponseWriter, r *http.Request)
	RespondReschedule(w http.ResponseWriter, r *http.Request)
	MarkAttendance(w http.ResponseWriter, r *http.Request)
	Complete(w http.ResponseWriter, r *http.Request)
	DetectNoShow(w http.ResponseWriter, r *http.Request)
	RaiseDispute(w http.ResponseWriter, r *http.Request)
}

type DisputeHandler interface {
	Resolve(w http.ResponseWriter, r *http.Request)
}

type PayoutHandler interface {
	Request(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	Process(w http.ResponseWriter, r *http.Request)
	Reverse(w http.ResponseWriter, r *http.Request)
	Confirm(w http.ResponseWriter, r *http.Request)
	BulkApprove(w http.ResponseWriter, r *http.Request)
}

type WalletHandler interface {
	GetWallet(w http.ResponseWriter, r *http.Request)
	GetTransactions(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
}

type Handlers struct {
	BookingHandler BookingHandler
	DisputeHandler DisputeHandler
	PayoutHandler  PayoutHandler
	WalletHandler  WalletHandler
	jwtService     auth.JWTServiceInterface
}

func New(s *service.Services, jwtService auth.JWTServiceInterface, currency string) *Handlers {
	return &Handlers{
		BookingHandler: bookinghandlers.New(s.BookingService, currency),
		DisputeHandler: disputehandlers.New(s.DisputeService),
		PayoutHandler:  payouthandlers.New(s.PayoutService),
		WalletHandler:  wallethandlers.New(s.LedgerService),
		jwtService:     jwtService,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"),
	))

	admin := auth.RequireRole(auth.RoleAdmin)
	staff := auth.RequireRole(auth.RoleTeacher, auth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtService))

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.BookingHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.BookingHandler.Get)
				r.Post("/cancel", h.BookingHandler.Cancel)
				r.Post("/reschedule-requests", h.BookingHandler.RequestReschedule)
				r.Post("/reschedule-requests/{rid}", h.BookingHandler.RespondReschedule)
				r.Post("/attendance", h.BookingHandler.MarkAttendance)
				r.Post("/dispute", h.BookingHandler.RaiseDispute)

				r.With(staff).Post("/approve", h.BookingHandler.Approve)
				r.With(staff).Post("/complete", h.BookingHandler.Complete)

				r.With(admin).Post("/payment", h.BookingHandler.ConfirmPayment)
				r.With(admin).Post("/reassign", h.BookingHandler.ReassignTeacher)
				r.With(admin).Post("/reschedule", h.BookingHandler.Reschedule)
				r.With(admin).Post("/no-show", h.BookingHandler.DetectNoShow)
				r.With(admin).Post("/dispute/resolve", h.DisputeHandler.Resolve)
			})
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.WalletHandler.GetWallet)
			r.Get("/transactions", h.WalletHandler.GetTransactions)
		})
		r.With(admin).Get("/wallets/{userID}/reconcile", h.WalletHandler.Reconcile)

		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", h.PayoutHandler.List)
			r.With(staff).Post("/", h.PayoutHandler.Request)
			r.With(admin).Post("/bulk-approve", h.PayoutHandler.BulkApprove)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.PayoutHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/approve", h.PayoutHandler.Approve)
					r.Post("/reject", h.PayoutHandler.Reject)
					r.Post("/process", h.PayoutHandler.Process)
					r.Post("/reverse", h.PayoutHandler.Reverse)
					r.Post("/confirm", h.PayoutHandler.Confirm)
				})
			})
		})
	})

	return r
}
