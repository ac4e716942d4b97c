package service

import (
	"github.com/GlebRadaev/tutorpay/internal/config"
	"github.com/GlebRadaev/tutorpay/internal/handlers/bookings"
	"github.com/GlebRadaev/tutorpay/internal/handlers/disputes"
	"github.com/GlebRadaev/tutorpay/internal/handlers/payouts"
	"github.com/GlebRadaev/tutorpay/internal/handlers/wallets"
	"github.com/GlebRadaev/tutorpay/internal/notify"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	"github.com/GlebRadaev/tutorpay/internal/repo"
	"github.com/GlebRadaev/tutorpay/internal/service/bookingservice"
	"github.com/GlebRadaev/tutorpay/internal/service/disputeservice"
	"github.com/GlebRadaev/tutorpay/internal/service/ledgerservice"
	"github.com/GlebRadaev/tutorpay/internal/service/payoutservice"
	"github.com/GlebRadaev/tutorpay/internal/service/policy"
)

type Services struct {
	LedgerService  wallets.Service
	BookingService bookings.Service
	DisputeService disputes.Service
	PayoutService  payouts.Service
}

func New(
	cfg *config.Config,
	repo *repo.Repositories,
	txManager pg.TXManager,
	publisher notify.Publisher,
	gateway payoutservice.Gateway,
) (*Services, error) {
	pol, err := policy.New(cfg.NoShowStudentShare)
	if err != nil {
		return nil, err
	}

	ledgerService := ledgerservice.New(repo.LedgerRepo, txManager)
	bookingService := bookingservice.New(bookingservice.Deps{
		Repo:        repo.BookingRepo,
		Reschedules: repo.RescheduleRepo,
		Subjects:    repo.SubjectRepo,
		Ledger:      ledgerService,
		Policy:      pol,
		TxManager:   txManager,
		Publisher:   publisher,
	}, cfg.CommissionRate)
	disputeService := disputeservice.New(bookingService, ledgerService, pol)
	payoutService := payoutservice.New(repo.PayoutRepo, ledgerService, gateway, txManager, publisher)

	return &Services{
		LedgerService:  ledgerService,
		BookingService: bookingService,
		DisputeService: disputeService,
		PayoutService:  payoutService,
	}, nil
}
