// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/auth"
	"github.com/iyunix/go-parley/internal/config"
	"github.com/iyunix/go-parley/internal/handlers"
	"github.com/iyunix/go-parley/internal/metrics"
	"github.com/iyunix/go-parley/internal/middleware"
	"github.com/iyunix/go-parley/internal/ratelimit"
	"github.com/iyunix/go-parley/internal/realtime"
	"github.com/iyunix/go-parley/internal/repository"
	"github.com/iyunix/go-parley/internal/services"
	chatservice "github.com/iyunix/go-parley/internal/services/chat"
	"github.com/iyunix/go-parley/internal/store"
)

// application aggregates everything main needs to serve and shut down.
type application struct {
	handler http.Handler
	gateway *realtime.Gateway
	limiter *ratelimit.Pool
	db      *gorm.DB
	logger  services.Logger
}

func newApplication(cfg *config.Config, logger services.Logger) (*application, error) {
	db, err := store.Open(store.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Debug:        cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, err
	}
	if err := repository.AutoMigrate(db); err != nil {
		store.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()

	// --- Persistence ---
	tx := store.NewTransactor(db,
		store.RetryConfig{MaxAttempts: cfg.TxMaxAttempts, Delay: cfg.TxRetryDelay},
		store.WithRetryObserver(func(attempt int, err error) {
			m.TxRetry(attempt, err)
			logger.Debug("retrying transaction after conflict", "attempt", attempt, "error", err)
		}),
	)
	uow := repository.NewUnitOfWork(tx)

	// --- Services ---
	chatCfg := chatservice.DefaultConfig()
	chatCfg.DefaultPageSize = cfg.ChatDefaultPageSize
	chatCfg.MaxPageSize = cfg.ChatMaxPageSize
	chatCfg.MaxContentLength = cfg.ChatMaxContentLength
	chatService, err := services.NewChatService(uow, chatCfg,
		services.WithLogger(logger),
		services.WithRecorder(m),
	)
	if err != nil {
		store.Close(db)
		return nil, fmt.Errorf("chat service: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.JWTSecretKey), cfg.JWTIssuer)
	if err != nil {
		store.Close(db)
		return nil, fmt.Errorf("JWT_SECRET_KEY: %w", err)
	}

	// --- Realtime ---
	wsCfg := realtime.DefaultConfig()
	wsCfg.EventTimeout = cfg.WSEventTimeout
	wsCfg.SendBuffer = cfg.WSSendBuffer
	wsCfg.EventRate = cfg.WSEventRate
	wsCfg.EventBurst = cfg.WSEventBurst
	wsCfg.AllowedOrigins = cfg.WSAllowedOrigins
	gateway := realtime.NewGateway(wsCfg, chatService, verifier, realtime.NewRegistry(),
		realtime.WithLogger(logger),
		realtime.WithMetrics(m),
	)

	// --- Handlers ---
	chatHandler := handlers.NewChatHandler(chatService, gateway, logger)
	messageHandler := handlers.NewMessageHandler(chatService, gateway, logger)

	limiterCfg := ratelimit.DefaultAPIConfig()
	limiterCfg.RPS = cfg.APIRateRPS
	limiterCfg.Burst = cfg.APIRateBurst
	limiter := ratelimit.NewPool(limiterCfg)

	// --- Router Setup ---
	r := mux.NewRouter()
	r.Use(middleware.RecoverPanic(logger))
	r.Use(middleware.LoggingMiddleware(logger, m))

	// --- Public Routes ---
	r.HandleFunc("/health", handlers.HealthHandler(chatService, gateway.Presence(), logger)).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", gateway.ServeWS).Methods(http.MethodGet)

	// --- Protected Routes ---
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewJWTMiddleware(verifier, logger))
	api.Use(middleware.RateLimitMiddleware(limiter, logger))
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	handlers.RegisterChatRoutes(api, chatHandler, messageHandler)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})

	// CORS wraps the router itself: mux only runs r.Use middleware on
	// matched routes and no route matches a preflight OPTIONS.
	return &application{
		handler: middleware.CORS(cfg.CORSAllowedOrigins)(r),
		gateway: gateway,
		limiter: limiter,
		db:      db,
		logger:  logger,
	}, nil
}

// close stops realtime traffic first so no event lands on a closed store.
func (a *application) close() {
	a.gateway.Close()
	a.limiter.Close()
	if err := store.Close(a.db); err != nil {
		a.logger.Error("closing database", "error", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger := services.NewLogger("parley", cfg.LogLevel, cfg.Environment)

	app, err := newApplication(cfg, logger)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	// --- Server Configuration ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		"port", cfg.ServerPort,
		"env", cfg.Environment,
		"db_driver", cfg.DBDriver,
	)

	// --- Start Server in Goroutine ---
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	app.gateway.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	app.close()
	logger.Info("server stopped")
}
