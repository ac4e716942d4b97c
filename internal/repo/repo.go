package repo

import (
	"github.com/GlebRadaev/tutorpay/internal/noshow"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	bookingrepo "github.com/GlebRadaev/tutorpay/internal/repo/booking-repo"
	ledgerrepo "github.com/GlebRadaev/tutorpay/internal/repo/ledger-repo"
	payoutrepo "github.com/GlebRadaev/tutorpay/internal/repo/payout-repo"
	reschedulerepo "github.com/GlebRadaev/tutorpay/internal/repo/reschedule-repo"
	subjectrepo "github.com/GlebRadaev/tutorpay/internal/repo/subject-repo"
	"github.com/GlebRadaev/tutorpay/internal/service/bookingservice"
	"github.com/GlebRadaev/tutorpay/internal/service/ledgerservice"
	"github.com/GlebRadaev/tutorpay/internal/service/payoutservice"
)

type BookingRepo interface {
	bookingservice.Repo
	noshow.Repo
}

type Repositories struct {
	BookingRepo    BookingRepo
	LedgerRepo     ledgerservice.Repo
	PayoutRepo     payoutservice.Repo
	RescheduleRepo bookingservice.RescheduleRepo
	SubjectRepo    bookingservice.SubjectRepo
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		BookingRepo:    bookingrepo.New(conn),
		LedgerRepo:     ledgerrepo.New(conn),
		PayoutRepo:     payoutrepo.New(conn),
		RescheduleRepo: reschedulerepo.New(conn),
		SubjectRepo:    subjectrepo.New(conn),
	}
}
