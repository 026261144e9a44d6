package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"food-order-service/config"
	"food-order-service/consumers"
	"food-order-service/controllers"
	"food-order-service/database"
	"food-order-service/delivery"
	"food-order-service/logger"
	"food-order-service/middlewares"
	"food-order-service/pricing"
	"food-order-service/rabbitmq"
	"food-order-service/ratelimit"
	"food-order-service/service"
	"food-order-service/storage"
)

const (
	chatSweepInterval      = 10 * time.Minute
	rateLimitSweepInterval = time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Config loading failed: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.LogPath = cfg.LogPath
	if err := logger.Init(logCfg); err != nil {
		logrus.Fatalf("Logger initialization failed: %v", err)
	}
	log := logger.App()

	if err := database.InitDB(cfg); err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer database.CloseDB()
	store := database.NewStore(database.DB, database.MySQL)

	var provider delivery.DistanceProvider
	if cfg.RoutingURL != "" {
		provider = delivery.NewOSRMProvider(cfg.RoutingURL)
	} else {
		log.Warn("ROUTING_URL not set, delivery fees fall back to the client quote")
	}
	calc := delivery.NewCalculator(provider, cfg.RoutingTimeout(), log,
		delivery.WithFailureHook(middlewares.RecordDistanceProviderFailure))

	resolver, err := storage.NewPrefixResolver(cfg.StorageBaseURL)
	if err != nil {
		log.Fatalf("Storage resolver initialization failed: %v", err)
	}

	opts := []service.Option{
		service.WithPricingOptions(pricing.WithMismatchHook(middlewares.RecordAmountMismatch)),
		service.WithTransitionHook(middlewares.RecordStatusTransition),
	}

	rmq, err := rabbitmq.NewRabbitMQ(cfg, log)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer rmq.Close()
	if err := rmq.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}
	opts = append(opts, service.WithPublisher(rmq))

	orderService := service.New(store, calc, resolver, opts...)
	controllers.SetOrderService(orderService)

	consumer := consumers.NewOrderConsumer(orderService, log,
		consumers.WithDeadLetterHook(middlewares.RecordDeadLetter))
	if err := consumer.Start(rmq.Channel, cfg); err != nil {
		log.Fatalf("Failed to start order consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.New(ratelimit.NewMemoryStore(rateLimitSweepInterval), map[string]ratelimit.Rule{
			controllers.LimitOrders: {Max: cfg.RateLimitOrderMax, Window: seconds(cfg.RateLimitOrderWindow)},
			controllers.LimitChat:   {Max: cfg.RateLimitChatMax, Window: seconds(cfg.RateLimitChatWindow)},
			controllers.LimitWrites: {Max: cfg.RateLimitWriteMax, Window: seconds(cfg.RateLimitWriteWindow)},
		})
	}

	// Catches chats whose delayed close message was lost.
	go every(ctx, chatSweepInterval, func() {
		n, err := orderService.SweepExpiredChats(ctx)
		if err != nil {
			log.WithError(err).Warn("chat sweep failed")
			return
		}
		if n > 0 {
			log.WithField("closed", n).Info("closed expired chats")
		}
	})

	r := gin.New()
	r.Use(gin.Recovery())
	controllers.RegisterRoutes(r, cfg.JWTSecret, limiter)

	srv := &http.Server{Addr: cfg.Address, Handler: r}
	go func() {
		log.Infof("Order service starting on %s", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	log.Info("Order service stopped")
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
