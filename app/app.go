// File: app/app.go
package app

import (
	"context"
	"dashboard-auth/config"
	"dashboard-auth/db"
	"dashboard-auth/handler"
	"dashboard-auth/logger"
	"dashboard-auth/notify"
	"dashboard-auth/repository"
	"dashboard-auth/router"
	"dashboard-auth/service"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Stores are the three credential stores the services run against.
type Stores struct {
	Users  repository.IUserRepository
	Tokens repository.ITokenRepository
	Resets repository.IResetTokenRepository
}

// App is the fully wired service graph behind one router.
type App struct {
	Router   http.Handler
	Tokens   *service.TokenService
	Sessions *service.SessionService
	Auth     *service.AuthService
	Reset    *service.ResetService
}

// TestApp is an App running on the in-memory stores.
type TestApp struct {
	*App
	Stores Stores
}

// New wires repositories, services, handlers and the router from cfg.
func New(cfg *config.Config, stores Stores, notifier notify.Notifier) (*App, error) {
	keys := make(map[string][]byte, len(cfg.JWT.Keys))
	for _, k := range cfg.JWT.Keys {
		keys[k.ID] = []byte(k.Secret)
	}
	tokens, err := service.NewTokenService(service.TokenConfig{
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		ActiveKey:  cfg.JWT.ActiveKey,
		Keys:       keys,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
	policy := service.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength}

	sessions := service.NewSessionService(tokens, stores.Tokens, stores.Users)
	auth := service.NewAuthService(stores.Users, hasher, policy, sessions)
	reset := service.NewResetService(stores.Users, stores.Resets, hasher, policy, notifier,
		service.ResetConfig{TTL: cfg.Auth.ResetTTL, URL: cfg.Auth.ResetURL})

	authHandler := handler.NewAuthHandler(auth, sessions, reset)
	adminHandler := handler.NewAdminHandler(sessions)

	return &App{
		Router:   router.NewRouter(authHandler, adminHandler, tokens),
		Tokens:   tokens,
		Sessions: sessions,
		Auth:     auth,
		Reset:    reset,
	}, nil
}

// NewTestApp builds an App over fresh in-memory stores.
func NewTestApp(cfg *config.Config, notifier notify.Notifier) (*TestApp, error) {
	stores := MemoryStores()
	a, err := New(cfg, stores, notifier)
	if err != nil {
		return nil, err
	}
	return &TestApp{App: a, Stores: stores}, nil
}

func MemoryStores() Stores {
	users := repository.NewMemoryUserRepository()
	tokens := repository.NewMemoryTokenRepository()
	return Stores{
		Users:  users,
		Tokens: tokens,
		Resets: repository.NewMemoryResetTokenRepository(users, tokens),
	}
}

func PostgresStores(database *sql.DB, queryTimeout time.Duration) Stores {
	return Stores{
		Users:  repository.NewUserRepository(database, queryTimeout),
		Tokens: repository.NewTokenRepository(database, queryTimeout),
		Resets: repository.NewResetTokenRepository(database, queryTimeout),
	}
}

// PurgeExpired removes expired refresh and reset tokens once.
func (a *App) PurgeExpired(ctx context.Context) {
	refresh, err := a.Sessions.PurgeExpired(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to purge expired refresh tokens")
	}
	resets, err := a.Reset.PurgeExpired(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to purge expired reset tokens")
	}
	if refresh > 0 || resets > 0 {
		logger.Log.WithFields(logrus.Fields{
			"refresh_tokens": refresh,
			"reset_tokens":   resets,
		}).Info("Expired tokens purged")
	}
}

func (a *App) runCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.PurgeExpired(ctx)
		}
	}
}

func Run() {
	logger.Init()
	config.LoadConfig(".")
	cfg := &config.AppConfig
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	logger.Log.Info("Configuration loaded successfully")

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// --- Storage ---
	var stores Stores
	switch cfg.Storage.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory storage, all credentials are lost on restart")
		stores = MemoryStores()
	default:
		database, err := db.Connect()
		if err != nil {
			logger.Log.Fatalf("Error connecting to the database: %v", err)
		}
		defer database.Close()
		if err := db.RunMigrations(database); err != nil {
			logger.Log.Fatalf("Error running migrations: %v", err)
		}
		stores = PostgresStores(database, cfg.Database.QueryTimeout)
	}

	// --- Reset token delivery ---
	var notifier notify.Notifier
	switch cfg.Notifier.Driver {
	case "redis":
		rdb, err := db.ConnectRedis(bgCtx)
		if err != nil {
			logger.Log.Fatalf("Error connecting to redis: %v", err)
		}
		defer rdb.Close()
		notifier = notify.NewRedisNotifier(rdb, cfg.Notifier.Channel)
	default:
		notifier = notify.NewLogNotifier()
	}

	a, err := New(cfg, stores, notifier)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}
	go a.runCleanup(bgCtx, cfg.Auth.CleanupInterval)

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
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
	cancelBg()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
