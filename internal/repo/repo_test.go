package repo

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	bookingrepo "github.com/GlebRadaev/tutorpay/internal/repo/booking-repo"
	ledgerrepo "github.com/GlebRadaev/tutorpay/internal/repo/ledger-repo"
	payoutrepo "github.com/GlebRadaev/tutorpay/internal/repo/payout-repo"
	reschedulerepo "github.com/GlebRadaev/tutorpay/internal/repo/reschedule-repo"
	subjectrepo "github.com/GlebRadaev/tutorpay/internal/repo/subject-repo"
)

func NewMock(t *testing.T) (*Repositories, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	t.Cleanup(mockDB.Close)
	return New(mockDB), mockDB
}

func TestNew(t *testing.T) {
	repo, mock := NewMock(t)

	assert.IsType(t, &bookingrepo.Repository{}, repo.BookingRepo)
	assert.IsType(t, &ledgerrepo.Repository{}, repo.LedgerRepo)
	assert.IsType(t, &payoutrepo.Repository{}, repo.PayoutRepo)
	assert.IsType(t, &reschedulerepo.Repository{}, repo.RescheduleRepo)
	assert.IsType(t, &subjectrepo.Repository{}, repo.SubjectRepo)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unmet expectations: %v", err)
	}
}
