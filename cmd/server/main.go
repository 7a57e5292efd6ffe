package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservations/internal/config"
	"github.com/iliyamo/event-reservations/internal/database"
	"github.com/iliyamo/event-reservations/internal/handler"
	"github.com/iliyamo/event-reservations/internal/ledger"
	"github.com/iliyamo/event-reservations/internal/middleware"
	"github.com/iliyamo/event-reservations/internal/queue"
	"github.com/iliyamo/event-reservations/internal/repository"
	"github.com/iliyamo/event-reservations/internal/router"
	queue_publisher "github.com/iliyamo/event-reservations/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet: the environment decides which one to build
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	build := zap.NewDevelopment
	if cfg.IsProd() {
		build = zap.NewProduction
	}
	log, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return log.With(zap.String("env", cfg.Env))
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	opts := []ledger.Option{ledger.WithMaxAttempts(cfg.LedgerMaxAttempts)}
	if cfg.AMQPURL != "" {
		pub := queue_publisher.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		opts = append(opts, ledger.WithNotifier(pub))
	}
	l := ledger.New(db, log, opts...)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	cancellations := repository.NewCancellationRepo(db)

	cacheCfg := config.LoadCacheConfig()
	cache := middleware.NewRedisCache(cacheCfg, rdb, log)
	purge := middleware.PurgeOnWrite(rdb, cacheCfg.Prefix, log)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(log))

	userHandler := handler.NewUserHandler(users, l, cfg.BcryptCost, log)
	eventHandler := handler.NewEventHandler(events, l, log)
	router.RegisterRoutes(e, &handler.ReadyHandler{DB: db, Redis: rdb, Log: log})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, log), userHandler, cfg.JWTSecret)
	router.RegisterPublic(e, eventHandler, cache)
	router.RegisterBookings(e, handler.NewBookingHandler(l, bookings, payments, cancellations, log), cfg.JWTSecret, limit, purge)
	router.RegisterAdmin(e, eventHandler, userHandler, handler.NewAdminHandler(l, log), cfg.JWTSecret, purge)

	var wg sync.WaitGroup
	if cfg.ConsumerEnabled && cfg.AMQPURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, cfg.BookingLogDir, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = e.Shutdown(sctx)
	wg.Wait()
	return err
}
