package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"parkshare/backend/internal/clock"
	"parkshare/backend/internal/config"
	"parkshare/backend/internal/notify"
	"parkshare/backend/internal/service/reservations"
	"parkshare/backend/internal/store"
	"parkshare/backend/internal/store/memory"
	"parkshare/backend/internal/store/postgres"
	grpcTransport "parkshare/backend/internal/transport/grpc"
	httpTransport "parkshare/backend/internal/transport/http"
)

func newServeCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server and the health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), log)
		},
	}
}

func runServe(ctx context.Context, base *slog.Logger) error {
	cfg, log, err := loadConfig(base)
	if err != nil {
		return err
	}

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("notify_driver", cfg.NotifyDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	notifier, closeNotifier := newNotifier(cfg, log)
	defer closeNotifier()

	svc := reservations.NewService(repo,
		reservations.WithNotifier(notifier),
		reservations.WithNotifyTimeout(cfg.NotifyTimeout),
		reservations.WithLogger(log),
	)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterReservationsServiceServer(grpcServer, grpcTransport.NewReservationsServer(svc, log))

	httpServer := httpTransport.NewHealthServer(svc, 2*time.Second, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			return err
		}
		return nil
	}
}

func openRepository(ctx context.Context, cfg config.Config, log *slog.Logger) (store.ReservationRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store; reservations are lost on restart")
		return memory.New(clock.Real{}), func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}

	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return postgres.NewReservationRepo(db), closeDB, nil
}

// newNotifier always logs events and additionally publishes them to the configured broker.
func newNotifier(cfg config.Config, log *slog.Logger) (notify.Notifier, func()) {
	logNotifier := notify.NewLogNotifier(log)

	switch cfg.NotifyDriver {
	case config.NotifyDriverAMQP:
		return notify.Fanout{logNotifier, notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)}, func() {}
	case config.NotifyDriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}
		return notify.Fanout{logNotifier, notify.NewRedisPublisher(client, cfg.RedisChannel)}, closeClient
	default:
		return logNotifier, func() {}
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, e *echo.Echo, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
