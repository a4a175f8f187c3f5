package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-service/cache"
	"bookstore-service/config"
	"bookstore-service/consumers"
	"bookstore-service/controllers"
	"bookstore-service/middlewares"
	"bookstore-service/rabbitmq"
	"bookstore-service/services"
	"bookstore-service/storage"
	"bookstore-service/store"
	"bookstore-service/store/memory"
	"bookstore-service/store/mysql"
	"bookstore-service/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.LoadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("bookstore service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	// Store
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		st = memory.New()
	case "mysql":
		db, err := mysql.Open(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.DBMigrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				return err
			}
		}
		st = mysql.New(db)
	default:
		return errors.New("STORE_DRIVER must be mysql or memory")
	}

	// Order events
	var events services.EventPublisher = services.NoopPublisher
	var rmq *rabbitmq.RabbitMQ
	if cfg.RabbitMQURL != "" {
		var err error
		rmq, err = rabbitmq.NewRabbitMQ(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rmq.Close(); err != nil {
				logger.Warn("close rabbitmq", "error", err)
			}
		}()
		if err := rmq.SetupQueues(); err != nil {
			return err
		}
		events = rmq
	} else {
		logger.Warn("RABBITMQ_URL not set, order events are disabled")
	}

	// Login throttling
	var limiter *cache.LoginLimiter
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = cache.NewLoginLimiter(rdb, cfg.LoginMaxAttempts, cfg.LoginCooldown)
	} else {
		logger.Warn("REDIS_ADDR not set, login attempts are not throttled")
	}

	// Cover images
	var bookOpts []services.BookOption
	if cfg.MinioEndpoint != "" {
		covers, err := storage.NewCoverStore(ctx, storage.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		bookOpts = append(bookOpts, services.WithImageUploader(covers, cfg.MaxImageSize))
	}

	users := services.NewUserService(st, utils.BcryptHasher{}, logger)
	books := services.NewBookService(st, logger, bookOpts...)
	orders := services.NewOrderService(st, events, logger, services.WithPaymentTimeout(cfg.PaymentTimeout))
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)

	if cfg.FirstSuperuserUsername != "" && cfg.FirstSuperuserPassword != "" {
		if _, err := users.EnsureSuperuser(ctx, cfg.FirstSuperuserEmail, cfg.FirstSuperuserUsername, cfg.FirstSuperuserPassword); err != nil {
			return err
		}
	}

	if rmq != nil {
		consumer := consumers.NewOrderConsumer(orders, logger)
		deliveries, err := rmq.Consume(cfg.OrderQueue, "bookstore-service", 10)
		if err != nil {
			return err
		}
		deadLetters, err := rmq.Consume(cfg.DeadLetterQueue, "bookstore-service-dlq", 1)
		if err != nil {
			return err
		}
		go consumer.Run(ctx, deliveries)
		go consumer.RunDeadLetters(ctx, deadLetters)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(logger), middlewares.PrometheusMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{middlewares.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	controllers.RegisterRoutes(r, controllers.Handlers{
		Auth:   controllers.NewAuthController(users, tokens, limiter),
		Users:  controllers.NewUserController(users),
		Books:  controllers.NewBookController(books),
		Orders: controllers.NewOrderController(orders),
		Admin:  controllers.NewAdminController(users, orders),
	}, middlewares.AuthMiddleware(tokens, users))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("bookstore service listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
