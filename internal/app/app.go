package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tutorpay/internal/config"
	"github.com/GlebRadaev/tutorpay/internal/gateway"
	"github.com/GlebRadaev/tutorpay/internal/handlers"
	"github.com/GlebRadaev/tutorpay/internal/noshow"
	"github.com/GlebRadaev/tutorpay/internal/notify"
	"github.com/GlebRadaev/tutorpay/internal/pg"
	"github.com/GlebRadaev/tutorpay/internal/repo"
	"github.com/GlebRadaev/tutorpay/internal/service"
	"github.com/GlebRadaev/tutorpay/pkg/auth"
	"github.com/GlebRadaev/tutorpay/pkg/clients"
	"github.com/GlebRadaev/tutorpay/pkg/logger"
	"github.com/GlebRadaev/tutorpay/pkg/workerpool"
)

const (
	eventWorkers  = 4
	noShowWorkers = 8
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg    *config.Config
	api    *handlers.Handlers
	srv    *service.Services
	repo   *repo.Repositories
	noShow *noshow.Service
	pools  []workerpool.WorkerPoolI

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	if err := pg.RunMigrations(ctx, pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}
	txManager := pg.NewTXManager(pool)

	eventPool := workerpool.NewWorkerPool(eventWorkers)
	noShowPool := workerpool.NewWorkerPool(noShowWorkers)
	// Settlements publish events, so the settlement pool drains before the event pool.
	a.pools = []workerpool.WorkerPoolI{noShowPool, eventPool}

	a.cfg = cfg
	a.repo = repo.New(pg.New(pool))
	a.srv, err = service.New(cfg, a.repo, txManager,
		notify.NewDispatcher(eventPool, newNotifier(cfg)),
		gateway.New(cfg.GatewayAddress, clients.NewHTTPClient()),
	)
	if err != nil {
		return fmt.Errorf("can't build services: %w", err)
	}
	a.api = handlers.New(a.srv, auth.NewJWTService(cfg.JWTSecret), cfg.Currency)
	a.noShow = noshow.New(cfg, a.repo.BookingRepo, a.srv.BookingService, noShowPool)

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}
	if err = a.startNoShowScanner(ctx); err != nil {
		return fmt.Errorf("can't start no-show scanner: %w", err)
	}

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.NotifyWebhookURL == "" {
		return notify.LogNotifier{}
	}
	return notify.NewWebhookNotifier(clients.NewHTTPClient(), cfg.NotifyWebhookURL)
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:    a.cfg.Address,
		Handler: router,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		a.shutdown(&server)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startNoShowScanner(ctx context.Context) error {
	return a.noShow.Start(ctx)
}

// shutdown stops taking requests, then drains the worker pools in order so settlements
// started by requests or the scanner still get their notifications out.
func (a *Application) shutdown(server *http.Server) {
	sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sCtx); err != nil {
		zap.L().Error("http server shutdown failed", zap.Error(err))
	}
	for _, p := range a.pools {
		p.Close()
	}
	zap.L().Info("worker pools drained")
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
