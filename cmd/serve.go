package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/authkeeper-server/internal/api/grpc/health"
	grpcRouter "github.com/dtroode/authkeeper-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/authkeeper-server/internal/api/grpc/server"
	httpctx "github.com/dtroode/authkeeper-server/internal/api/http/context"
	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	"github.com/dtroode/authkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	httpRouter "github.com/dtroode/authkeeper-server/internal/api/http/router"
	httpServer "github.com/dtroode/authkeeper-server/internal/api/http/server"
	"github.com/dtroode/authkeeper-server/internal/config"
	"github.com/dtroode/authkeeper-server/internal/hasher"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/metrics"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/repository/memory"
	"github.com/dtroode/authkeeper-server/internal/repository/postgres"
	"github.com/dtroode/authkeeper-server/internal/server"
	"github.com/dtroode/authkeeper-server/internal/service"
	storage "github.com/dtroode/authkeeper-server/internal/storage/minio"
	"github.com/dtroode/authkeeper-server/internal/token"
	"github.com/dtroode/authkeeper-server/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API and the gRPC health server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
			defer stop()

			return serve(ctx, cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving (postgres only)")

	return cmd
}

type userStore interface {
	model.UserStore
	health.Pinger
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	logAppVersion()

	store, closeStore, err := openStore(ctx, cfg, migrate, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		return err
	}
	defer closeStore()

	passwordHasher, err := hasher.NewArgon2id(hasher.Params{
		Time:   cfg.KDF.Time,
		MemKiB: cfg.KDF.MemKiB,
		Par:    cfg.KDF.Par,
	})
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	tokenManager, err := token.NewJWT(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	validator := validation.New(validation.PasswordPolicy{
		MinLength:     cfg.Password.MinLength,
		RequireUpper:  cfg.Password.RequireUpper,
		RequireLower:  cfg.Password.RequireLower,
		RequireDigit:  cfg.Password.RequireDigit,
		RequireSymbol: cfg.Password.RequireSymbol,
	})

	m := metrics.New()

	authService := service.NewAuth(store, passwordHasher, tokenManager, validator, m, logger, service.AuthOptions{
		AvatarRequired: cfg.Register.AvatarRequired,
	})

	var assets handler.AssetService
	if cfg.Storage.Enabled {
		storageClient, err := storage.NewClient(ctx, storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			logger.Error("failed to initialize object storage", "error", err)
			return err
		}
		assets = service.NewAssets(storageClient, logger)
	}

	restServer := newHTTPServer(cfg, authService, assets, store, m, logger)

	checker := health.NewChecker(store, cfg.GRPC.HealthInterval, logger)
	healthServer := grpcServer.NewGRPCServer(
		grpcRouter.New(checker.Server(), logger).Register(),
		fmt.Sprintf(":%s", cfg.GRPC.Port),
	)

	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		checker.Run(ctx)
	}()

	servers := []model.Server{restServer, healthServer}
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
			}
		}(s)
	}

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger *logger.Logger) (userStore, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory user store, data is lost on restart")
		return memory.NewUserRepository(), func() {}, nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN, postgres.Options{
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		Migrate:         migrate,
	})
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	return pgStore{UserRepository: postgres.NewUserRepository(db), conn: db}, closeFn, nil
}

// pgStore pairs the repository with the pool it pings.
type pgStore struct {
	*postgres.UserRepository
	conn *postgres.Connection
}

func (s pgStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func newHTTPServer(
	cfg *config.Config,
	authService *service.Auth,
	assets handler.AssetService,
	pinger httpRouter.Pinger,
	m *metrics.Metrics,
	logger *logger.Logger,
) *httpServer.HTTPServer {
	writer := response.NewWriter(logger)
	ctxMgr := httpctx.NewManager()

	userHandler := handler.NewUser(authService, assets, ctxMgr, writer, handler.CookieOptions{
		Secure: cfg.HTTP.CookieSecure,
	}, logger)
	authenticate := middleware.NewAuthenticate(authService, ctxMgr, writer, logger)

	r := httpRouter.New(userHandler, authenticate, m, pinger, writer, logger, cfg.HTTP.RequestTimeout)

	return httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port), cfg.HTTP.RequestTimeout)
}
