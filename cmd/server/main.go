package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"shopfront_back_end/internal/cache"
	"shopfront_back_end/internal/config"
	"shopfront_back_end/internal/database"
	"shopfront_back_end/internal/events"
	"shopfront_back_end/internal/handlers"
	"shopfront_back_end/internal/logging"
	"shopfront_back_end/internal/metrics"
	"shopfront_back_end/internal/payment"
	"shopfront_back_end/internal/repository"
	"shopfront_back_end/internal/routes"
	"shopfront_back_end/internal/search"
	"shopfront_back_end/internal/services"
	"shopfront_back_end/internal/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scylla, err := database.NewScyllaManager(cfg, log)
	if err != nil {
		return err
	}
	defer scylla.Close()

	usersSession, err := scylla.Session(cfg.UsersKeyspace.Keyspace)
	if err != nil {
		return err
	}
	productsSession, err := scylla.Session(cfg.ProductsKeyspace.Keyspace)
	if err != nil {
		return err
	}
	ordersSession, err := scylla.Session(cfg.OrdersKeyspace.Keyspace)
	if err != nil {
		return err
	}

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	minioClient, err := database.ConnectMinIO(ctx, cfg)
	if err != nil {
		return err
	}

	var index services.ProductIndex
	if es, err := database.ConnectElastic(cfg); err != nil {
		log.Warn("elasticsearch unavailable, search scans the catalog", "error", err)
	} else {
		index = search.NewProductIndex(es, "")
	}

	var publisher services.OrderEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrdersTopic)
		defer producer.Close()
		publisher = producer
	} else {
		log.Info("KAFKA_BROKERS not set, order events disabled")
	}

	var mailer services.MailSender
	if cfg.MailEnabled() {
		mailer = utils.NewMailer(utils.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		log.Info("SMTP_HOST not set, order mails disabled")
	}

	m := metrics.New()
	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.UserTokenTTL, cfg.AdminTokenTTL)
	users := repository.NewUserStore(usersSession)
	products := cache.NewProductCache(repository.NewProductStore(productsSession), rdb, log)
	locker := cache.NewCartLocker(rdb)
	notifier := cache.NewCartNotifier(rdb)

	userSvc := services.NewUserService(users, tokens)
	productSvc := services.NewProductService(products,
		services.NewMinioImageStore(minioClient, cfg.MinIOBucket, cfg.MinIOPublicURL), index, log)
	cartSvc := services.NewCartService(users, locker, notifier, m, log)
	orderSvc := services.NewOrderService(services.OrderConfig{
		Currency:       cfg.StripeCurrency,
		DeliveryCharge: cfg.DeliveryCharge,
	}, services.OrderDeps{
		Orders:   repository.NewOrderStore(ordersSession),
		Users:    users,
		Gateway:  payment.NewGateway(cfg.StripeSecretKey, cfg.StripeCurrency),
		Locker:   locker,
		Notifier: notifier,
		Events:   publisher,
		Mailer:   mailer,
		Metrics:  m,
		Log:      log,
	})

	gin.SetMode(gin.ReleaseMode)
	router := routes.New(routes.Deps{
		Users:      handlers.NewUserHandler(userSvc),
		Products:   handlers.NewProductHandler(productSvc),
		Carts:      handlers.NewCartHandler(cartSvc),
		CartSocket: handlers.NewCartSocket(cartSvc, notifier, cfg.AllowedOrigins),
		Orders:     handlers.NewOrderHandler(orderSvc, cfg.DefaultOrigin),
		Tokens:     tokens,
		UserFinder: users,
		Limits:     cache.NewRateCounter(rdb),
		Metrics:    m,
		Log:        log,
		Origins:    cfg.AllowedOrigins,
		ReqTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	orderSvc.Wait()
	log.Info("server stopped cleanly")
	return nil
}
