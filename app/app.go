// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/config"
	"go-auth-api/db"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// App is the fully wired HTTP application.
type App struct {
	Router http.Handler
	Users  repository.IUserRepository
}

// New wires services and handlers on top of an already opened store.
// A nil redisClient disables rate limiting.
func New(cfg *config.Config, users repository.IUserRepository, redisClient *redis.Client) (*App, error) {
	hasher, err := service.NewPasswordHasher(cfg.Security.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	tokens, err := service.NewTokenManager(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	// --- Wiring All Layers Together ---
	authService := service.NewAuthService(users, hasher, tokens, service.AuthSettings{
		RefreshSessionTTL:   cfg.Auth.RefreshSessionTTL,
		StoreTimeout:        cfg.Database.Timeout,
		AllowRoleOnRegister: cfg.Auth.AllowRoleOnRegister,
	})
	userService := service.NewUserService(users, cfg.Database.Timeout)

	deps := router.Dependencies{
		AuthHandler:   handler.NewAuthHandler(authService),
		UserHandler:   handler.NewUserHandler(userService),
		Authenticator: handler.NewAuthenticator(tokens, authService),
	}
	if redisClient != nil {
		deps.Limiter = service.NewRateLimiter(redisClient, "auth", cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
	}

	return &App{Router: router.NewRouter(deps), Users: users}, nil
}

// openStore returns the repository for the configured driver and a closer
// for whatever it holds open.
func openStore(cfg *config.Config) (repository.IUserRepository, func(), error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Log.Warn("Using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, nil, err
	}
	return repository.NewUserRepository(database), func() { closeDB(database) }, nil
}

func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		logger.Log.WithError(err).Warn("Error closing database")
	}
}

func Run() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	common.ExposeErrorDetail(cfg.IsDevelopment())
	logger.Log.WithField("env", cfg.Server.Env).Info("Configuration loaded successfully")

	users, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Error opening user store: %v", err)
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = db.ConnectRedis(cfg)
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Log.Warn("Redis disabled; authentication rate limiting is off")
	}

	application, err := New(cfg, users, redisClient)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: application.Router,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Log.Info("Server exited properly")
}
