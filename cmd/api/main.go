package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/azizikri/coupon-ledger/internal/audit"
	"github.com/azizikri/coupon-ledger/internal/config"
	httphandler "github.com/azizikri/coupon-ledger/internal/delivery/http"
	"github.com/azizikri/coupon-ledger/internal/delivery/kafka"
	"github.com/azizikri/coupon-ledger/internal/lib/logger"
	"github.com/azizikri/coupon-ledger/internal/lib/sl"
	"github.com/azizikri/coupon-ledger/internal/repository"
	"github.com/azizikri/coupon-ledger/internal/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
)

const healthTimeout = 2 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.SetupLogger(cfg.Env, cfg.LogLevel)
	log.Info("starting coupon ledger",
		slog.String("env", cfg.Env),
		slog.Bool("event_driven", cfg.EventDrivenEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := initDB(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	store := repository.New(pool)
	guard := usecase.NewStoreGuard("coupon-store", cfg.BreakerFailures(), cfg.BreakerOpenTimeout)

	sinks := []audit.Sink{audit.NewPostgresSink(store)}

	var mongoSink *audit.MongoSink
	if cfg.AuditMongoURI != "" {
		mongoSink, err = audit.NewMongoSink(ctx, cfg.AuditMongoURI, cfg.AuditMongoDatabase, cfg.AuditMongoCollection)
		if err != nil {
			log.Warn("mongo audit sink disabled", sl.Err(err))
		} else {
			sinks = append(sinks, mongoSink)
		}
	}

	var kafkaClient *kgo.Client
	var retryClient *kgo.Client
	var replyClient *kgo.Client
	var brokers []string

	if cfg.EventDrivenEnabled {
		brokers = strings.Split(cfg.KafkaBrokers, ",")
		kafkaClient, err = newConsumerClient(
			brokers,
			cfg.KafkaClientID,
			cfg.KafkaGroupID,
			kafka.RequestTopics()...,
		)
		if err != nil {
			log.Error("failed to create kafka client", sl.Err(err))
			os.Exit(1)
		}

		if err := kafka.EnsureTopics(ctx, kafkaClient, cfg, log); err != nil {
			log.Warn("failed to ensure topics", sl.Err(err))
		}

		if cfg.KafkaAuditEnabled {
			sinks = append(sinks, kafka.NewAuditPublisher(kafkaClient))
		}
	}

	auditLog := audit.NewMulti(log, sinks...)
	opts := []usecase.Option{
		usecase.WithGuard(guard),
		usecase.WithLockTimeout(cfg.RedeemLockTimeout),
		usecase.WithActor(cfg.AuditActor),
	}
	ledger := usecase.NewLedgerService(store, auditLog, log, opts...)
	coupons := usecase.NewCouponService(store, auditLog, log, opts...)
	direct := kafka.NewDirectGateway(ledger, coupons)

	var gateway usecase.CouponGateway
	if cfg.EventDrivenEnabled {
		kgateway := kafka.NewGateway(cfg, kafkaClient, log)
		gateway = kgateway

		consumer := kafka.NewConsumer(cfg, kafkaClient, direct, log)
		go consumer.Start(ctx)

		retryClient, err = newConsumerClient(
			brokers,
			cfg.KafkaClientID+"-retry",
			cfg.KafkaRetryGroupID,
			kafka.RetryTopics()...,
		)
		if err != nil {
			log.Error("failed to create retry kafka client", sl.Err(err))
			os.Exit(1)
		}
		retryConsumer := kafka.NewConsumer(cfg, retryClient, direct, log)
		go retryConsumer.StartRetry(ctx)

		replyClient, err = newReplyClient(
			brokers,
			cfg.KafkaClientID+"-reply",
			kafka.ReplyTopic(cfg.KafkaInstanceID),
		)
		if err != nil {
			log.Error("failed to create reply kafka client", sl.Err(err))
			os.Exit(1)
		}
		go kgateway.Listen(ctx, replyClient)
	} else {
		gateway = direct
	}

	handler := httphandler.NewHandler(gateway, coupons, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httphandler.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(httphandler.Metrics)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", httphandler.IdempotencyKeyHeader},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := coupons.Ping(r.Context(), healthTimeout); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "unavailable", "database": err.Error()})
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok", "breaker": guard.State().String()})
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting server", slog.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", sl.Err(err))
	}

	if kafkaClient != nil {
		kafkaClient.Close()
	}
	if replyClient != nil {
		replyClient.Close()
	}
	if retryClient != nil {
		retryClient.Close()
	}
	if mongoSink != nil {
		if err := mongoSink.Close(shutdownCtx); err != nil {
			log.Warn("mongo disconnect error", sl.Err(err))
		}
	}

	wg.Wait()
	log.Info("shutdown complete")
}

func initDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

func newConsumerClient(brokers []string, clientID, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
}

func newReplyClient(brokers []string, clientID, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
}
