package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nearbytix/nearbytix/config"
	"github.com/nearbytix/nearbytix/internal/handler"
	"github.com/nearbytix/nearbytix/internal/middleware"
	"github.com/nearbytix/nearbytix/internal/repository"
	"github.com/nearbytix/nearbytix/internal/scheduler"
	"github.com/nearbytix/nearbytix/internal/service"
	"github.com/nearbytix/nearbytix/pkg/database"
	"github.com/nearbytix/nearbytix/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ publisher: lifecycle events for downstream consumers.
	// Optional; a nil publisher is a no-op.
	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		var err error
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
	} else {
		logrus.Warn("RABBITMQ_URL not set, lifecycle events disabled")
	}

	// Redis backs the rate limiter on the reserve endpoint. Optional.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	} else {
		logrus.Warn("REDIS_URL not set, rate limiting disabled")
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	// One-shot expiration scheduling is a latency optimization; the sweep
	// alone keeps ticket state correct when it is disabled.
	var sched *scheduler.Scheduler
	var ticketSched service.ExpirationScheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(cfg.ExpireMaxRetries, cfg.ExpireRetryBackoff)
		ticketSched = sched
		defer sched.Stop()
	} else {
		logrus.Warn("one-shot expiration scheduling disabled, relying on sweep only")
	}

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	eventSvc := service.NewEventService(eventRepo, publisher)
	ticketSvc := service.NewTicketService(
		ticketRepo, eventRepo, userRepo,
		ticketSched, publisher,
		cfg.TicketExpiration, cfg.SweepBatchSize,
	)
	recSvc := service.NewRecommendationService(db, cfg.DefaultSearchRadiusKM)

	if sched != nil {
		sched.SetExpireFunc(ticketSvc.ExpireTicket)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go scheduler.NewSweeper(ticketSvc, cfg.SweepInterval).Run(sweepCtx)

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "nearbytix"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler.NewAuthHandler(authSvc).RegisterRoutes(e, cfg.JWTSecret)
	handler.NewEventHandler(eventSvc, ticketSvc).RegisterRoutes(e, cfg.JWTSecret)
	handler.NewTicketHandler(ticketSvc).RegisterRoutes(e, cfg.JWTSecret,
		middleware.RateLimit(rdb, cfg.RateLimit, cfg.RateLimitWindow))
	handler.NewRecommendationHandler(recSvc, authSvc, cfg.DefaultSearchRadiusKM).RegisterRoutes(e, cfg.JWTSecret)

	log.Printf("NearbyTix starting on :%s", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
