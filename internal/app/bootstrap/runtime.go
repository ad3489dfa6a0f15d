package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/cartlane/affiliate-settlement-service/internal/adapters/cache"
	"github.com/cartlane/affiliate-settlement-service/internal/adapters/clients"
	eventadapter "github.com/cartlane/affiliate-settlement-service/internal/adapters/events"
	grpcadapter "github.com/cartlane/affiliate-settlement-service/internal/adapters/grpc"
	httpadapter "github.com/cartlane/affiliate-settlement-service/internal/adapters/http"
	"github.com/cartlane/affiliate-settlement-service/internal/adapters/postgres"
	"github.com/cartlane/affiliate-settlement-service/internal/adapters/rails"
	"github.com/cartlane/affiliate-settlement-service/internal/adapters/security"
	"github.com/cartlane/affiliate-settlement-service/internal/application"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping affiliate settlement service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	verifier, err := security.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init jwt verifier: %w", err)
	}
	cookieCodec, err := security.NewHMACCookieCodec(cfg.CookieSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init cookie codec: %w", err)
	}

	repos := postgres.NewRepositories(db)
	railRegistry := rails.NewRegistry(
		rails.NewStripeRail(rails.StripeConfig{
			APIKey:     cfg.StripeAPIKey,
			RefreshURL: cfg.StripeRefreshURL,
			ReturnURL:  cfg.StripeReturnURL,
		}),
		rails.NewSplitPayRail(rails.SplitPayConfig{
			BaseURL:   cfg.SplitPayBaseURL,
			APIKey:    cfg.SplitPayAPIKey,
			ReturnURL: cfg.SplitPayReturnURL,
		}),
	)
	publisher := eventadapter.NewRedisStreamPublisher(redisClient, eventadapter.DefaultStreamNames())

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:        cfg.ServiceID,
			CookieWindowDays:   cfg.CookieWindowDays,
			DefaultCurrency:    cfg.DefaultCurrency,
			IdempotencyTTL:     cfg.IdempotencyTTL,
			EventDedupTTL:      cfg.EventDedupTTL,
			RailStatusCacheTTL: cfg.RailStatusCacheTTL,
			RailCallTimeout:    cfg.RailCallTimeout,
		},
		Affiliates:     repos.Affiliates,
		Clicks:         repos.Clicks,
		Commissions:    repos.Commissions,
		PayoutAccounts: repos.PayoutAccounts,
		PayoutAttempts: repos.PayoutAttempts,
		Idempotency:    repos.Idempotency,
		Outbox:         repos.Outbox,
		EventDedup:     cacheadapter.NewRedisEventDedupStore(redisClient),
		RailStatus:     cacheadapter.NewRedisRailStatusCache(redisClient),
		Rails:          railRegistry,
		Orders: clients.NewHTTPOrderReader(clients.OrderClientConfig{
			BaseURL:      cfg.OrdersBaseURL,
			ServiceToken: cfg.OrdersServiceToken,
		}),
		CookieCodec: cookieCodec,
		Analytics:   publisher,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler, verifier, cfg.InternalToken)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewSettlementInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
