package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/app"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/auth"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/consumer"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/handler"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/jobs"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/middleware"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/database"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/rabbitmq"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	defer log.Sync()

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.DSN())
	if err != nil {
		log.Error("failed to open database", logger.Error(err))
		os.Exit(1)
	}

	eng, err := app.Build(cfg, db, log)
	if err != nil {
		log.Error("failed to build engine", logger.Error(err))
		os.Exit(1)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit events published by the engine are persisted from the queue.
	if cfg.RabbitEnabled {
		mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.AuditExchange, rabbitmq.AuditQueue, rabbitmq.AuditBindingKey, log)
		if err != nil {
			log.Error("failed to connect to RabbitMQ", logger.Error(err))
			os.Exit(1)
		}
		defer mqConsumer.Close()

		msgs, err := mqConsumer.Consume()
		if err != nil {
			log.Error("failed to start consuming", logger.Error(err))
			os.Exit(1)
		}
		consumer.NewAuditConsumer(repository.NewAuditRepository(db), log).Start(ctx, msgs)
	}

	scheduler, err := jobs.NewScheduler(cfg.Policy.SweepSchedule, eng.Routes, eng.Idempotency, log)
	if err != nil {
		log.Error("failed to schedule jobs", logger.Error(err))
		os.Exit(1)
	}
	scheduler.Start()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Validator = middleware.NewValidator()
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Info("request",
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Int64("latency_ms", v.Latency.Milliseconds()),
			)
			return nil
		},
	}))
	e.Use(echoMw.Recover())
	e.Use(middleware.RequestMeta())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": cfg.ServiceName})
	})

	api := e.Group("/api/v1", auth.Middleware([]byte(cfg.JWTSecret)))
	handler.NewRouteHandler(eng.Routes).RegisterRoutes(api)
	handler.NewBookingHandler(eng.Bookings).RegisterRoutes(api)
	handler.NewPaymentHandler(eng.Payments).RegisterRoutes(api)
	handler.NewPayoutHandler(eng.Payouts).RegisterRoutes(api)

	go func() {
		log.Info("carpool service starting", logger.String("port", cfg.ServerPort))
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
	}
}
