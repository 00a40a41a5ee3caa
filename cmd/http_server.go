package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/auth"
	authPostgres "github.com/tradecore/access-management/internal/auth/postgres"
	"github.com/tradecore/access-management/internal/rbac"
	rbacPostgres "github.com/tradecore/access-management/internal/rbac/postgres"
	rbacRedis "github.com/tradecore/access-management/internal/rbac/redis"
	"github.com/tradecore/access-management/internal/transport/rest"
	"github.com/tradecore/access-management/internal/user"
	userPostgres "github.com/tradecore/access-management/internal/user/postgres"
	"github.com/tradecore/access-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	DB      *gorm.DB
	Redis   *goredis.Client
	Router  *chi.Mux
	Sweeper *rbac.Sweeper
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if deps.Sweeper != nil {
		if err := deps.Sweeper.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start sweeper: %v\n", err)
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if deps.Sweeper != nil {
			deps.Sweeper.Stop()
		}
		if sqlDB, err := deps.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Database close error", "error", err)
			}
		}
		if err := deps.Redis.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Format, config.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// Auth wiring
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTAccessSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(db), tokenGen, config.Security.BCryptCost)
	authHandler := auth.NewHandler(authService)

	// Authorization core wiring
	rbacRepo := rbacPostgres.NewRepository(db)
	snapshotStore := rbacRedis.NewStore(redisClient)
	snapshots := rbac.NewSnapshotService(snapshotStore, rbacRepo, lg)
	checker := rbac.NewChecker(authService, snapshots, lg)

	assignmentService := rbac.NewAssignmentService(rbacRepo, lg)
	adminService := rbac.NewAdminService(rbacRepo, lg)
	rbacHandler := rbac.NewHandler(adminService, assignmentService)

	var sweeper *rbac.Sweeper
	if config.Authz.SweepSchedule != "" {
		sweeper = rbac.NewSweeper(assignmentService, config.Authz.SweepSchedule, lg)
	}

	// User directory wiring
	userService := user.NewService(userPostgres.NewRepository(db))
	userHandler := user.NewHandler(userService)

	router := chi.NewRouter()
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap sql db: %w", err)
	}
	rest.RegisterAllRoutes(router, sqlDB, redisClient, authHandler, userHandler, rbacHandler, checker, lg)

	return &Dependencies{
		Config:  config,
		DB:      db,
		Redis:   redisClient,
		Router:  router,
		Sweeper: sweeper,
		Logger:  lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Source), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
