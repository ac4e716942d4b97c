// Package noshow periodically finds sessions that started without both parties and hands them
// to the booking state machine for no-show settlement.
package noshow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/tutorpay/internal/config"
	"github.com/GlebRadaev/tutorpay/internal/domain"
	"github.com/GlebRadaev/tutorpay/pkg/workerpool"
)

const batchLimit = 500

type Repo interface {
	FindNoShowCandidates(ctx context.Context, startedBefore time.Time, limit uint32) ([]domain.Booking, error)
}

type Detector interface {
	DetectNoShow(ctx context.Context, id uuid.UUID, who domain.NoShowParty) (*domain.Booking, error)
}

type Service struct {
	repo       Repo
	detector   Detector
	workerPool workerpool.WorkerPoolI
	schedule   string
	grace      time.Duration
	limit      uint32
	inFlight   sync.Map
	now        func() time.Time
}

func New(cfg *config.Config, repo Repo, detector Detector, pool workerpool.WorkerPoolI) *Service {
	return &Service{
		repo:       repo,
		detector:   detector,
		workerPool: pool,
		schedule:   cfg.NoShowSchedule,
		grace:      cfg.NoShowGrace,
		limit:      batchLimit,
		now:        time.Now,
	}
}

// Start schedules the scan and stops the scheduler when ctx is done. Overlapping runs are
// skipped.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(s.schedule, func() { s.Scan(ctx) }); err != nil {
		return err
	}
	c.Start()
	zap.L().Info("no-show scanner started", zap.String("schedule", s.schedule), zap.Duration("grace", s.grace))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		zap.L().Info("no-show scanner stopped")
	}()
	return nil
}

// Scan settles every overdue booking once. A booking already queued by an earlier scan is
// left to that scan.
func (s *Service) Scan(ctx context.Context) {
	bookings, err := s.repo.FindNoShowCandidates(ctx, s.now().Add(-s.grace), s.limit)
	if err != nil {
		zap.L().Error("failed to fetch no-show candidates", zap.Error(err))
		return
	}

	var g errgroup.Group
	for _, b := range bookings {
		if _, loaded := s.inFlight.LoadOrStore(b.ID, struct{}{}); loaded {
			continue
		}

		id, who := b.ID, WhoFailed(&b)
		g.Go(func() error {
			err := s.workerPool.AddTask(ctx, func() error {
				defer s.inFlight.Delete(id)
				if _, err := s.detector.DetectNoShow(ctx, id, who); err != nil {
					zap.L().Warn("no-show settlement failed", zap.String("booking_id", id.String()), zap.Error(err))
					return err
				}
				return nil
			})
			if err != nil {
				s.inFlight.Delete(id)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("error scheduling no-show settlements", zap.Error(err))
	}
}

// WhoFailed derives the absent party from the attendance flags.
func WhoFailed(b *domain.Booking) domain.NoShowParty {
	switch {
	case b.TeacherAttended && !b.StudentAttended:
		return domain.NoShowStudent
	case !b.TeacherAttended && b.StudentAttended:
		return domain.NoShowTeacher
	default:
		return domain.NoShowBoth
	}
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.S().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.S().Errorw(msg, append(keysAndValues, "error", err)...)
}
